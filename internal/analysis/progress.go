package analysis

// Overall progress bands: 0-15 setup, 15-70 external indexing, 70-75 handoff,
// 75-100 result harvesting.
const (
	ProgressStarted       = 5
	ProgressExternalFloor = 15
	ProgressHandoff       = 70
	ProgressHarvest       = 75
	ProgressDone          = 100

	externalSpan = 0.55
)

// MapExternalProgress maps the provider's sub-task percentage onto the job's
// overall 0-100 progress while the external phase runs.
func MapExternalProgress(p int) int {
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	return ProgressExternalFloor + int(float64(p)*externalSpan)
}
