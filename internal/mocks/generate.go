// Package mocks provides mock implementations for testing the login engine.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for the directory ports.
// The mocks are generated using go:generate directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	dir := mocks.NewMockDirectory(ctrl)
//	dir.EXPECT().Bind(gomock.Any(), "EXAMPLE\\jdoe", "secret").Return(conn, nil)
package mocks

// Generate mocks for the Directory and DirectoryConn interfaces from internal/ports.
// This creates MockDirectory (Bind) and MockDirectoryConn (Lookup, LookupByDN, LookupMany, Close).
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=directory_mock.go github.com/target/mmk-ldap-auth/internal/ports Directory,DirectoryConn
