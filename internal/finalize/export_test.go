package finalize

import "time"

func (f *Finalizer) SetRetryBackoff(d time.Duration) { f.retryBackoff = d }
