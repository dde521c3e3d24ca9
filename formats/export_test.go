package formats

// Hooks for formats_test.
var (
	SeriesRecord  = seriesRecord
	OrcColumns    = orcColumns
	OrcFieldNames = orcFieldNames
)

type SeriesKind = seriesKind

const (
	SeriesAuto     = seriesAuto
	SeriesDate     = seriesDate
	SeriesDateTime = seriesDateTime
	SeriesBytes    = seriesBytes
)
