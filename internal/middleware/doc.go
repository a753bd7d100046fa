// Package middleware provides HTTP middleware for the admin API.
//
// It includes:
//   - Request logging in W3C Extended Log Format
//   - Prometheus request metrics labelled by route template
//   - gzip response compression for larger bodies such as the audit log
//   - Bearer token authentication against a bcrypt hash
package middleware
