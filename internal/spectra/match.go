package spectra

import (
	"github.com/dnswlt/skycat/internal/table"
)

// MatchToObjects copies the redshift columns of a stacked spectra table
// onto an object catalog by nearest sky-coordinate match (1 arcsecond by
// default). Objects without a matching spectrum keep NaN/zero values.
// It returns the number of objects that got a spectrum.
func MatchToObjects(objs, specs *table.Table, maxSeparation float64) (int, error) {
	return objs.MatchByCoord(specs, table.MatchOptions{
		Columns: []string{
			"SPECOBJID", "SPEC_Z", "SPEC_Z_ERR", "ZQUALITY",
			"MASKNAME", "TELNAME", "HELIO_CORR",
		},
		MaxSeparation: maxSeparation,
	})
}
