// Package credentials resolves the account and API token used to authenticate
// against each side of a migration.
//
// Tokens never live in configuration files directly; configuration names a
// token source such as env:WIKIMIGRATE_SOURCE_TOKEN or file:~/.tokens/source,
// and the TokenResolver reads the secret at run time.
package credentials
