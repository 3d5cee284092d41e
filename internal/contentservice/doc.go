// Package contentservice is a typed client for the Confluence-compatible REST
// surface of a hosted wiki content service.
//
// Each operation issues one request (listings follow the server's pagination
// links until exhausted) and returns either a decoded payload or a classified
// OperationError carrying the HTTP status and response body. The client never
// retries; callers decide how a failure affects the wider migration.
package contentservice
