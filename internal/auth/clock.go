package auth

import "time"

// timeNow is swapped in tests to pin expiry decisions.
var timeNow = time.Now
