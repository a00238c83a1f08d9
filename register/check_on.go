//go:build cachecheck

package register

const selfCheck = true
