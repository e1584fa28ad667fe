package faucet

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/dmitrymomot/faucet/pkg/ratelimiter"
)

// Asset is one (asset, amount) pair of a strategy, in human units.
type Asset struct {
	Asset  string
	Amount decimal.Decimal
}

// Strategy is a named disbursement policy.
type Strategy struct {
	Name      string
	Transfers []Asset
	// Limit is the number of disbursements per identity and window.
	Limit int
	// AddressLimit bounds disbursements per destination across all surfaces.
	// Zero means the same as Limit.
	AddressLimit int
	Window       ratelimiter.Window
}

// Validate checks that the strategy can be served.
func (s Strategy) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidStrategy)
	}
	if len(s.Transfers) == 0 {
		return fmt.Errorf("%w: %s: no transfers", ErrInvalidStrategy, s.Name)
	}
	for i, t := range s.Transfers {
		if strings.TrimSpace(t.Asset) == "" {
			return fmt.Errorf("%w: %s: transfer %d has no asset", ErrInvalidStrategy, s.Name, i)
		}
		if !t.Amount.IsPositive() {
			return fmt.Errorf("%w: %s: transfer %d amount must be positive", ErrInvalidStrategy, s.Name, i)
		}
	}
	if s.Limit < 0 || s.AddressLimit < 0 {
		return fmt.Errorf("%w: %s: negative limit", ErrInvalidStrategy, s.Name)
	}
	if err := s.Window.Validate(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidStrategy, s.Name, err)
	}
	return nil
}

func (s Strategy) addressLimit() int {
	if s.AddressLimit > 0 {
		return s.AddressLimit
	}
	return s.Limit
}

// Strategies indexes strategies by name.
type Strategies map[string]Strategy

// Names returns the strategy names in sorted order.
func (s Strategies) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// File is the operator file holding strategies and message templates.
//
//	strategies:
//	  normal:
//	    transfers:
//	      - asset: ACA
//	        amount: "10"
//	    limit: 1
//	    addressLimit: 3
//	    window: 1 day        # or [1, day]
//	messages:
//	  dripSuccess: "Sent {{.Amount}} to {{.Account}}: {{.TxHash}}"
//	  LIMIT_EXCEEDED: "{{.Account}} has reached the limit"
type File struct {
	Strategies Strategies
	Messages   map[string]string
}

type fileDoc struct {
	Strategies map[string]strategyDoc `yaml:"strategies"`
	Messages   map[string]string      `yaml:"messages"`
}

type strategyDoc struct {
	Transfers []struct {
		Asset  string `yaml:"asset"`
		Amount string `yaml:"amount"`
	} `yaml:"transfers"`
	Limit        int       `yaml:"limit"`
	AddressLimit int       `yaml:"addressLimit"`
	Window       windowDoc `yaml:"window"`
}

// windowDoc accepts both "1 day" and [1, "day"].
type windowDoc ratelimiter.Window

func (w *windowDoc) UnmarshalYAML(node *yaml.Node) error {
	var spec string
	switch node.Kind {
	case yaml.ScalarNode:
		spec = node.Value
	case yaml.SequenceNode:
		if len(node.Content) != 2 {
			return fmt.Errorf("%w: window must be [count, unit]", ErrInvalidStrategy)
		}
		count, err := strconv.Atoi(node.Content[0].Value)
		if err != nil {
			return fmt.Errorf("%w: window count %q", ErrInvalidStrategy, node.Content[0].Value)
		}
		spec = strconv.Itoa(count) + " " + node.Content[1].Value
	default:
		return fmt.Errorf("%w: unsupported window at line %d", ErrInvalidStrategy, node.Line)
	}

	parsed, err := ratelimiter.ParseWindow(spec)
	if err != nil {
		return err
	}
	*w = windowDoc(parsed)
	return nil
}

// LoadFile reads and parses the strategies file at path.
func LoadFile(path string) (*File, error) {
	if path == "" {
		return nil, ErrStrategiesFileNil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read strategies file: %w", err)
	}
	return ParseFile(data)
}

// ParseFile parses a strategies file and validates every strategy.
func ParseFile(data []byte) (*File, error) {
	var doc fileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse strategies file: %w", err)
	}
	if len(doc.Strategies) == 0 {
		return nil, ErrNoStrategies
	}

	f := &File{
		Strategies: make(Strategies, len(doc.Strategies)),
		Messages:   doc.Messages,
	}
	for name, sd := range doc.Strategies {
		s := Strategy{
			Name:         name,
			Limit:        sd.Limit,
			AddressLimit: sd.AddressLimit,
			Window:       ratelimiter.Window(sd.Window),
		}
		for _, t := range sd.Transfers {
			amount, err := decimal.NewFromString(t.Amount)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: amount %q: %v", ErrInvalidStrategy, name, t.Amount, err)
			}
			s.Transfers = append(s.Transfers, Asset{Asset: t.Asset, Amount: amount})
		}
		if err := s.Validate(); err != nil {
			return nil, err
		}
		f.Strategies[name] = s
	}
	return f, nil
}
