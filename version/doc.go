// Package version reports the build of a plcstream command. Version and
// Commit are set with -ldflags; otherwise the module build info is used.
//
//	go build -ldflags "-X github.com/kbukum/plcstream/version.Version=1.2.0" ./cmd/plcdemo
package version
