package oauth

import "time"

// timeNow is swapped in tests to pin token windows.
var timeNow = time.Now
