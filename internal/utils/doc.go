// Package utils exposes reusable helpers consumed by the wikimigrate commands.
//
// It houses the ConfigurationLoader and LoggerFactory abstractions that
// integrate Viper, environment variables, and zap logging for the CLI, along
// with the context accessor used to hand configuration metadata to
// subcommands and the FlushingWriter that keeps console progress output
// unbuffered.
package utils
