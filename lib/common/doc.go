// Package common provides the configuration and logging shared by the
// command-line tools: the logger factory installed into the dragonboat logger
// facade and the Config that builds intern stores and their collectors.
package common
