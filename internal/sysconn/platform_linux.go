//go:build linux

package sysconn

const isBSD = false
