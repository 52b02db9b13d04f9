//go:build !unix

package main

import "errors"

func restart() error {
	return errors.New("restart not supported on this platform")
}
