package chainEvents

import (
	"encoding/json"
	"math"

	"github.com/gnosis/tradingdb/internal/config"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

var (
	ErrMissingParam = errors.New("missing event parameter")
	ErrInvalidParam = errors.New("invalid event parameter")
)

var (
	minInt = decimal.NewFromInt(math.MinInt)
	maxInt = decimal.NewFromInt(math.MaxInt)
)

// Params looks up event parameters by name. When a name repeats the last value wins.
type Params struct {
	values *orderedmap.OrderedMap[string, json.RawMessage]
}

func NewParams(params []Param) *Params {
	om := orderedmap.New[string, json.RawMessage]()
	for _, p := range params {
		om.Set(p.Name, p.Value)
	}
	return &Params{values: om}
}

func (p *Params) Has(name string) bool {
	_, ok := p.values.Get(name)
	return ok
}

// Names returns the parameter names in delivery order.
func (p *Params) Names() []string {
	names := make([]string, 0, p.values.Len())
	for pair := p.values.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

func (p *Params) raw(name string) (json.RawMessage, error) {
	v, ok := p.values.Get(name)
	if !ok || len(v) == 0 || string(v) == "null" {
		return nil, errors.Wrap(ErrMissingParam, name)
	}
	return v, nil
}

func (p *Params) String(name string) (string, error) {
	v, err := p.raw(name)
	if err != nil {
		return "", err
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return "", errors.Wrapf(err, "parameter %s is not a string", name)
	}
	return s, nil
}

// Address returns the parameter as a normalized address.
func (p *Params) Address(name string) (string, error) {
	s, err := p.String(name)
	if err != nil {
		return "", err
	}
	return config.NormalizeAddress(s), nil
}

// Decimal parses a numeric parameter delivered either as a JSON number or a string.
func (p *Params) Decimal(name string) (decimal.Decimal, error) {
	v, err := p.raw(name)
	if err != nil {
		return decimal.Zero, err
	}
	var n json.Number
	if err := json.Unmarshal(v, &n); err != nil {
		return decimal.Zero, errors.Wrapf(ErrInvalidParam, "parameter %s is not a number: %v", name, err)
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return decimal.Zero, errors.Wrapf(ErrInvalidParam, "parameter %s is not a number: %v", name, err)
	}
	return d, nil
}

// Int parses an integer parameter that fits in an int.
func (p *Params) Int(name string) (int64, error) {
	d, err := p.Decimal(name)
	if err != nil {
		return 0, err
	}
	if !d.IsInteger() {
		return 0, errors.Wrapf(ErrInvalidParam, "parameter %s is not an integer: %s", name, d.String())
	}
	if d.LessThan(minInt) || d.GreaterThan(maxInt) {
		return 0, errors.Wrapf(ErrInvalidParam, "parameter %s is out of range: %s", name, d.String())
	}
	return d.IntPart(), nil
}
