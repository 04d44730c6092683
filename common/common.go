package common

import "runtime"

// GetProcNum resolves a goroutine limit, non-positive meaning one per CPU.
func GetProcNum(maxGoroutines int) int {
	if maxGoroutines <= 0 {
		return runtime.NumCPU()
	}

	return maxGoroutines
}
