// Package main provides the entry point for the phoneprobe CLI.
//
// phoneprobe discovers which social platform accounts are tied to a phone
// number by deriving likely usernames from it and probing each platform's
// public profile pages.
//
// Usage:
//
//	phoneprobe search <phone-number>
//	phoneprobe search --list <file>
//	phoneprobe check <platform> <username>...
//
// See --help for all available options.
package main

// main is the entry point for phoneprobe.
func main() {
	Execute()
}
