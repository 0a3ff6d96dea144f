// Package config provides the run configuration of phoneprobe and the
// .phoneprobe configuration file, whose platform sections adjust the
// built-in platform descriptors.
package config
