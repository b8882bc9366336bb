package version

// Current is the sourcer release, without a "v" prefix.
const Current = "0.3.0"
