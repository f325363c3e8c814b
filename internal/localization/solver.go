package localization

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/dronewatch/dronewatch-go/internal/conf"
	"github.com/dronewatch/dronewatch-go/internal/errors"
	"github.com/dronewatch/dronewatch-go/internal/observability"
)

// Solver converts a TDOA vector into a 2-D position estimate by solving the
// linearized hyperbolic system with least squares.
type Solver struct {
	Array        MicrophoneArray
	SpeedOfSound float64
	// Bound is the +/- box in meters outside which solutions are replaced
	// by DefaultPoint and flagged.
	Bound        float64
	DefaultPoint conf.MicPosition
}

// NewSolver builds a solver from the localization configuration.
func NewSolver(settings *conf.LocalizationSettings) *Solver {
	return &Solver{
		Array:        ArrayFromSettings(settings),
		SpeedOfSound: settings.SpeedOfSound,
		Bound:        settings.PositionBound,
		DefaultPoint: settings.DefaultPoint,
	}
}

// Solve stacks one linearized equation per non-reference microphone,
//
//	2(x_i - x_0)X + 2(y_i - y_0)Y = x_i^2 + y_i^2 - x_0^2 - y_0^2 - d_i^2
//
// with d_i = tdoa_i * speedOfSound, and solves A p = b by least squares.
// The exactly-determined three-microphone case and overdetermined larger
// arrays both reduce to the same solve.
func (s *Solver) Solve(tdoas TDOAVector) (PositionEstimate, error) {
	m := s.Array.Count() - 1
	if len(tdoas) != m {
		return PositionEstimate{}, errors.Newf("TDOA vector length %d does not match %d non-reference microphones",
			len(tdoas), m).
			Component("localization").
			Category(errors.CategoryValidation).
			Build()
	}

	ref := s.Array.Position(0)

	aData := make([]float64, 0, m*2)
	bData := make([]float64, 0, m)
	for i := 1; i <= m; i++ {
		mic := s.Array.Position(i)
		di := tdoas[i-1] * s.SpeedOfSound

		aData = append(aData, 2*(mic.X-ref.X), 2*(mic.Y-ref.Y))
		bData = append(bData,
			mic.X*mic.X+mic.Y*mic.Y-ref.X*ref.X-ref.Y*ref.Y-di*di)
	}

	A := mat.NewDense(m, 2, aData)
	b := mat.NewVecDense(m, bData)

	var p mat.VecDense
	if err := p.SolveVec(A, b); err != nil {
		return PositionEstimate{}, errors.New(errors.ErrSingularGeometry).
			Component("localization").
			Category(errors.CategoryLocalization).
			Context("solve_error", err.Error()).
			Build()
	}

	x, y := p.AtVec(0), p.AtVec(1)
	if math.IsNaN(x) || math.IsNaN(y) ||
		math.Abs(x) > s.Bound || math.Abs(y) > s.Bound {
		getLogger().Warn("solved position outside plausible bounds, substituting default point",
			"x", x, "y", y, "bound", s.Bound)
		observability.OutOfBoundsPositionTotal.Inc()
		return PositionEstimate{
			X:           s.DefaultPoint.X,
			Y:           s.DefaultPoint.Y,
			OutOfBounds: true,
		}, nil
	}

	return PositionEstimate{X: x, Y: y}, nil
}
