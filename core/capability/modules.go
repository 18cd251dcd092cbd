package capability

import (
	"fmt"
	"math"
	"math/rand"
	"regexp"
	"sort"
	"time"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// RandomModule builds a fresh random namespace with its own generator, so no
// generator state is shared across concurrent executions. Snippets that need
// reproducibility call random.seed().
func RandomModule() *starlarkstruct.Module {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &starlarkstruct.Module{
		Name: "random",
		Members: starlark.StringDict{
			"seed": starlark.NewBuiltin("seed", func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
				var n int64
				if err := starlark.UnpackArgs(b.Name(), args, kwargs, "n", &n); err != nil {
					return nil, err
				}
				rng.Seed(n)
				return starlark.None, nil
			}),
			"random": starlark.NewBuiltin("random", func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
				if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
					return nil, err
				}
				return starlark.Float(rng.Float64()), nil
			}),
			"randint": starlark.NewBuiltin("randint", func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
				var lo, hi int64
				if err := starlark.UnpackArgs(b.Name(), args, kwargs, "a", &lo, "b", &hi); err != nil {
					return nil, err
				}
				if hi < lo {
					return nil, fmt.Errorf("randint: empty range [%d, %d]", lo, hi)
				}
				return starlark.MakeInt64(lo + rng.Int63n(hi-lo+1)), nil
			}),
			"uniform": starlark.NewBuiltin("uniform", func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
				var lo, hi float64
				if err := starlark.UnpackArgs(b.Name(), args, kwargs, "a", &lo, "b", &hi); err != nil {
					return nil, err
				}
				return starlark.Float(lo + rng.Float64()*(hi-lo)), nil
			}),
			"choice": starlark.NewBuiltin("choice", func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
				var seq starlark.Value
				if err := starlark.UnpackArgs(b.Name(), args, kwargs, "seq", &seq); err != nil {
					return nil, err
				}
				indexable, ok := seq.(starlark.Indexable)
				if !ok {
					return nil, fmt.Errorf("choice: %s is not indexable", seq.Type())
				}
				n := indexable.Len()
				if n == 0 {
					return nil, fmt.Errorf("choice: empty sequence")
				}
				return indexable.Index(rng.Intn(n)), nil
			}),
		},
	}
}

// RegexModule exposes a minimal pattern-matching namespace backed by the
// host's RE2 engine: linear-time matching, no catastrophic backtracking for
// a hostile pattern to exploit.
func RegexModule() *starlarkstruct.Module {
	return &starlarkstruct.Module{
		Name: "re",
		Members: starlark.StringDict{
			"search":  starlark.NewBuiltin("search", reSearch),
			"match":   starlark.NewBuiltin("match", reMatch),
			"findall": starlark.NewBuiltin("findall", reFindall),
			"sub":     starlark.NewBuiltin("sub", reSub),
			"split":   starlark.NewBuiltin("split", reSplit),
		},
	}
}

// StatisticsModule exposes descriptive statistics over numeric sequences.
// Every function converts its input to float64s up front; sample variants
// (stdev, variance) require at least two data points, population variants
// (pstdev, pvariance) require one.
func StatisticsModule() *starlarkstruct.Module {
	return &starlarkstruct.Module{
		Name: "statistics",
		Members: starlark.StringDict{
			"mean":      starlark.NewBuiltin("mean", statMean),
			"median":    starlark.NewBuiltin("median", statMedian),
			"mode":      starlark.NewBuiltin("mode", statMode),
			"stdev":     starlark.NewBuiltin("stdev", statStdev),
			"variance":  starlark.NewBuiltin("variance", statVariance),
			"pstdev":    starlark.NewBuiltin("pstdev", statPstdev),
			"pvariance": starlark.NewBuiltin("pvariance", statPvariance),
		},
	}
}

// sequenceFloats unpacks the single sequence argument and converts every
// element to float64.
func sequenceFloats(b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) ([]float64, error) {
	var seq starlark.Iterable
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "data", &seq); err != nil {
		return nil, err
	}
	var data []float64
	iter := seq.Iterate()
	defer iter.Done()
	var v starlark.Value
	for iter.Next(&v) {
		f, ok := starlark.AsFloat(v)
		if !ok {
			return nil, fmt.Errorf("%s: %s is not a number", b.Name(), v.Type())
		}
		data = append(data, f)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%s: empty data", b.Name())
	}
	return data, nil
}

func floatMean(data []float64) float64 {
	var sum float64
	for _, f := range data {
		sum += f
	}
	return sum / float64(len(data))
}

// floatVariance computes the sum of squared deviations divided by ddof fewer
// than the sample size; ddof is 1 for the sample variance, 0 for the
// population variance.
func floatVariance(name string, data []float64, ddof int) (float64, error) {
	if len(data) <= ddof {
		return 0, fmt.Errorf("%s: requires at least %d data points", name, ddof+1)
	}
	m := floatMean(data)
	var ss float64
	for _, f := range data {
		d := f - m
		ss += d * d
	}
	return ss / float64(len(data)-ddof), nil
}

func statMean(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	data, err := sequenceFloats(b, args, kwargs)
	if err != nil {
		return nil, err
	}
	return starlark.Float(floatMean(data)), nil
}

func statMedian(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	data, err := sequenceFloats(b, args, kwargs)
	if err != nil {
		return nil, err
	}
	sort.Float64s(data)
	n := len(data)
	if n%2 == 1 {
		return starlark.Float(data[n/2]), nil
	}
	return starlark.Float((data[n/2-1] + data[n/2]) / 2), nil
}

func statMode(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	data, err := sequenceFloats(b, args, kwargs)
	if err != nil {
		return nil, err
	}
	counts := make(map[float64]int, len(data))
	best := data[0]
	for _, f := range data {
		counts[f]++
		// Ties resolve to the value seen first, matching insertion order.
		if counts[f] > counts[best] {
			best = f
		}
	}
	return starlark.Float(best), nil
}

func statStdev(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	data, err := sequenceFloats(b, args, kwargs)
	if err != nil {
		return nil, err
	}
	v, err := floatVariance(b.Name(), data, 1)
	if err != nil {
		return nil, err
	}
	return starlark.Float(math.Sqrt(v)), nil
}

func statVariance(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	data, err := sequenceFloats(b, args, kwargs)
	if err != nil {
		return nil, err
	}
	v, err := floatVariance(b.Name(), data, 1)
	if err != nil {
		return nil, err
	}
	return starlark.Float(v), nil
}

func statPstdev(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	data, err := sequenceFloats(b, args, kwargs)
	if err != nil {
		return nil, err
	}
	v, err := floatVariance(b.Name(), data, 0)
	if err != nil {
		return nil, err
	}
	return starlark.Float(math.Sqrt(v)), nil
}

func statPvariance(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	data, err := sequenceFloats(b, args, kwargs)
	if err != nil {
		return nil, err
	}
	v, err := floatVariance(b.Name(), data, 0)
	if err != nil {
		return nil, err
	}
	return starlark.Float(v), nil
}

func compilePattern(name, pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid pattern: %v", name, err)
	}
	return re, nil
}

func reSearch(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var pattern, s string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "pattern", &pattern, "string", &s); err != nil {
		return nil, err
	}
	re, err := compilePattern(b.Name(), pattern)
	if err != nil {
		return nil, err
	}
	return starlark.Bool(re.MatchString(s)), nil
}

func reMatch(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var pattern, s string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "pattern", &pattern, "string", &s); err != nil {
		return nil, err
	}
	re, err := compilePattern(b.Name(), "^(?:"+pattern+")")
	if err != nil {
		return nil, err
	}
	return starlark.Bool(re.MatchString(s)), nil
}

func reFindall(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var pattern, s string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "pattern", &pattern, "string", &s); err != nil {
		return nil, err
	}
	re, err := compilePattern(b.Name(), pattern)
	if err != nil {
		return nil, err
	}
	matches := re.FindAllString(s, -1)
	elems := make([]starlark.Value, len(matches))
	for i, m := range matches {
		elems[i] = starlark.String(m)
	}
	return starlark.NewList(elems), nil
}

func reSub(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var pattern, repl, s string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "pattern", &pattern, "repl", &repl, "string", &s); err != nil {
		return nil, err
	}
	re, err := compilePattern(b.Name(), pattern)
	if err != nil {
		return nil, err
	}
	return starlark.String(re.ReplaceAllString(s, repl)), nil
}

func reSplit(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var pattern, s string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "pattern", &pattern, "string", &s); err != nil {
		return nil, err
	}
	re, err := compilePattern(b.Name(), pattern)
	if err != nil {
		return nil, err
	}
	parts := re.Split(s, -1)
	elems := make([]starlark.Value, len(parts))
	for i, p := range parts {
		elems[i] = starlark.String(p)
	}
	return starlark.NewList(elems), nil
}
