package types

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// genWindow produces arbitrary windows up to 90 days long within a few years
// around the present
func genWindow() gopter.Gen {
	return gopter.CombineGens(
		gen.IntRange(0, 2000),
		gen.IntRange(0, 89),
	).Map(func(vals []interface{}) DateWindow {
		offset := vals[0].(int)
		length := vals[1].(int)
		since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, offset)
		return NewDateWindow(since, since.AddDate(0, 0, length))
	})
}

func TestDateWindowProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("previous window has equal length", prop.ForAll(
		func(w DateWindow) bool {
			return w.Previous().Days() == w.Days()
		},
		genWindow(),
	))

	properties.Property("previous window ends the day before the current starts", prop.ForAll(
		func(w DateWindow) bool {
			prev := w.Previous()
			return prev.Until.AddDate(0, 0, 1).Equal(w.Since)
		},
		genWindow(),
	))

	properties.Property("previous and current windows never overlap", prop.ForAll(
		func(w DateWindow) bool {
			prev := w.Previous()
			return prev.Until.Before(w.Since) && !prev.Contains(w.Since) && !w.Contains(prev.Until)
		},
		genWindow(),
	))

	properties.Property("every day of the window is contained in it", prop.ForAll(
		func(w DateWindow) bool {
			for d := w.Since; !d.After(w.Until); d = d.AddDate(0, 0, 1) {
				if !w.Contains(d) {
					return false
				}
			}
			return true
		},
		genWindow(),
	))

	properties.TestingRun(t)
}
