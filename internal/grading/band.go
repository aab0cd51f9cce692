package grading

type bandStep struct {
	minCorrect int
	band       float64
}

// bandTable is the 40-question conversion staircase, highest first.
var bandTable = []bandStep{
	{39, 9.0},
	{37, 8.5},
	{35, 8.0},
	{33, 7.5},
	{30, 7.0},
	{27, 6.5},
	{23, 6.0},
	{19, 5.5},
	{15, 5.0},
	{13, 4.5},
	{10, 4.0},
	{8, 3.5},
	{6, 3.0},
	{4, 2.5},
}

// MinBand is awarded below the lowest staircase step.
const MinBand = 2.0

// BandScore converts a raw correct count to a band. Counts between steps take
// the lower band.
func BandScore(correct int) float64 {
	for _, s := range bandTable {
		if correct >= s.minCorrect {
			return s.band
		}
	}
	return MinBand
}
