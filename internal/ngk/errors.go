package ngk

import "errors"

// ErrDirinZero is the FatalNumerical condition of dirin == 0 in initial
// seeding. Guarded by gsmin > 0 in SetInitialGradient, this should
// never occur; callers should treat it as an assertion failure.
var ErrDirinZero = errors.New("ngk: dirin computed as zero during initial gradient seeding")
