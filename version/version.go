package version

// Version is the current release of the carsafe binary.
const Version = "0.1.0"
