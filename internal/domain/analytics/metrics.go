package analytics

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"
)

// Evaluator abstracts JMESPath operations for testability.
type Evaluator interface {
	Validate(expr string) error
	Evaluate(expr string, data any) (any, error)
}

type jmespathEvaluator struct{}

func (jmespathEvaluator) Validate(expr string) error {
	if strings.TrimSpace(expr) == "" {
		return errors.New("expression is empty")
	}
	_, err := jmespath.Compile(expr)
	return err
}

func (jmespathEvaluator) Evaluate(expr string, data any) (any, error) {
	return jmespath.Search(expr, data)
}

// DefaultEvaluator returns the go-jmespath backed evaluator.
func DefaultEvaluator() Evaluator {
	return jmespathEvaluator{}
}

// Metric is a percentage-style display value extracted from the raw result document.
type Metric struct {
	Name       string `json:"name"`
	Expression string `json:"expression"`
	Value      int    `json:"value"`
	Malformed  bool   `json:"malformed,omitempty"`
}

// ParsePercentage reads the leading integer of a display value such as "85%" and clamps it to
// [0,100]. Anything without a leading integer renders as 0 and is reported as malformed.
func ParsePercentage(name, raw string) (int, *MalformedMetric) {
	s := strings.TrimSpace(raw)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, &MalformedMetric{Name: name, Value: raw}
	}

	n, err := strconv.Atoi(s[:end])
	if err != nil {
		// Only a range error is possible here: the run is all digits.
		if s[0] == '-' {
			return 0, nil
		}
		return 100, nil
	}
	return min(max(n, 0), 100), nil
}

// ValidateExpressions checks every configured metric expression up front.
func ValidateExpressions(eval Evaluator, exprs map[string]string) error {
	if eval == nil {
		eval = DefaultEvaluator()
	}
	for _, name := range sortedKeys(exprs) {
		if err := eval.Validate(exprs[name]); err != nil {
			return fmt.Errorf("metric %s: %w", name, err)
		}
	}
	return nil
}

// ExtractMetrics evaluates each named expression against doc. Metrics come back sorted by name.
// Values that cannot be read render as 0 and are also returned as MalformedMetric warnings.
func ExtractMetrics(eval Evaluator, doc any, exprs map[string]string) ([]Metric, []MalformedMetric) {
	if eval == nil {
		eval = DefaultEvaluator()
	}
	metrics := make([]Metric, 0, len(exprs))
	malformed := []MalformedMetric{}
	for _, name := range sortedKeys(exprs) {
		expr := exprs[name]
		m := Metric{Name: name, Expression: expr}
		value, bad := readMetric(eval, name, expr, doc)
		if bad != nil {
			m.Malformed = true
			malformed = append(malformed, *bad)
		} else {
			m.Value = value
		}
		metrics = append(metrics, m)
	}
	return metrics, malformed
}

func readMetric(eval Evaluator, name, expr string, doc any) (int, *MalformedMetric) {
	if doc == nil {
		return 0, &MalformedMetric{Name: name}
	}
	v, err := eval.Evaluate(expr, doc)
	if err != nil {
		return 0, &MalformedMetric{Name: name}
	}
	switch t := v.(type) {
	case string:
		return ParsePercentage(name, t)
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return 0, &MalformedMetric{Name: name, Value: formatNumber(t)}
		}
		// Truncate like ParsePercentage so 85.7 and "85.7%" agree.
		return int(clamp(math.Trunc(t), 0, 100)), nil
	case int:
		return min(max(t, 0), 100), nil
	case nil:
		return 0, &MalformedMetric{Name: name}
	default:
		return 0, &MalformedMetric{Name: name, Value: fmt.Sprint(t)}
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
