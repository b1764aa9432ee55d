package morton

import "errors"

// ErrOverflow indicates a Morton code operation would exceed the code
// width's maximum level. Per spec §7 this is an invariant violation:
// the source of such an error is a bug in level/budget bookkeeping
// upstream, not a condition a caller should recover from.
var ErrOverflow = errors.New("morton: code overflow")
