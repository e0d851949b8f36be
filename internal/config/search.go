package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	SearchTargetContacts      = "contacts"
	SearchTargetOpportunities = "opportunities"
	SearchTargetTickets       = "tickets"
	SearchTargetProducts      = "products"
)

// searchTargetPaths is the fixed enumeration of searchable targets.
var searchTargetPaths = map[string]string{
	SearchTargetContacts:      "/api/contacts",
	SearchTargetOpportunities: "/api/opportunities",
	SearchTargetTickets:       "/api/tickets",
	SearchTargetProducts:      "/api/products",
}

// SearchTargetOrder is the order targets appear in search responses.
var SearchTargetOrder = []string{
	SearchTargetContacts,
	SearchTargetOpportunities,
	SearchTargetTickets,
	SearchTargetProducts,
}

type SearchTarget struct {
	Name   string   `mapstructure:"name"`
	Fields []string `mapstructure:"fields"`
}

// Path returns the resource path the target is read from.
func (t SearchTarget) Path() string {
	return searchTargetPaths[t.Name]
}

type SearchConfig struct {
	Targets []SearchTarget `mapstructure:"targets"`
}

func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		Targets: []SearchTarget{
			{Name: SearchTargetContacts, Fields: []string{"name", "email", "company", "phone"}},
			{Name: SearchTargetOpportunities, Fields: []string{"title", "stage", "contactName"}},
			{Name: SearchTargetTickets, Fields: []string{"subject", "description", "status", "guestName"}},
			{Name: SearchTargetProducts, Fields: []string{"name", "sku", "category"}},
		},
	}
}

type SearchConfigHolder struct {
	current atomic.Value // holds SearchConfig
}

// NewStaticSearchConfig returns a holder that never reloads.
func NewStaticSearchConfig(cfg SearchConfig) (*SearchConfigHolder, error) {
	normalized, err := normalizeSearchConfig(cfg)
	if err != nil {
		return nil, err
	}
	holder := &SearchConfigHolder{}
	holder.current.Store(normalized)
	return holder, nil
}

func NewSearchConfigHolder(log *zap.Logger) (*SearchConfigHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("config.search")

	v := viper.New()

	v.SetConfigName("search")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/crm")
	v.AddConfigPath(".")

	v.SetEnvPrefix("CRM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
		v.SetDefault("search.targets", DefaultSearchConfig().Targets)
	}

	var cfg SearchConfig
	if err := v.UnmarshalKey("search", &cfg); err != nil {
		return nil, err
	}
	normalized, err := normalizeSearchConfig(cfg)
	if err != nil {
		return nil, err
	}

	holder := &SearchConfigHolder{}
	holder.current.Store(normalized)

	if fileFound {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			var updated SearchConfig
			if err := v.UnmarshalKey("search", &updated); err != nil {
				log.Warn("search config reload failed", zap.Error(err))
				return
			}
			normalized, err := normalizeSearchConfig(updated)
			if err != nil {
				log.Warn("invalid search config ignored", zap.Error(err))
				return
			}
			holder.current.Store(normalized)
			log.Info("search config reloaded", zap.String("file", e.Name))
		})
	}

	return holder, nil
}

func (h *SearchConfigHolder) Get() SearchConfig {
	return h.current.Load().(SearchConfig)
}

// normalizeSearchConfig validates targets against the fixed enumeration, fills in
// defaults for omitted targets and returns them in response order.
func normalizeSearchConfig(cfg SearchConfig) (SearchConfig, error) {
	byName := make(map[string]SearchTarget, len(cfg.Targets))
	for _, target := range cfg.Targets {
		name := strings.ToLower(strings.TrimSpace(target.Name))
		if _, ok := searchTargetPaths[name]; !ok {
			return SearchConfig{}, fmt.Errorf("search target %q is not searchable", target.Name)
		}
		if _, dup := byName[name]; dup {
			return SearchConfig{}, fmt.Errorf("search target %q declared twice", name)
		}
		fields := make([]string, 0, len(target.Fields))
		for _, f := range target.Fields {
			if f = strings.TrimSpace(f); f != "" {
				fields = append(fields, f)
			}
		}
		if len(fields) == 0 {
			return SearchConfig{}, fmt.Errorf("search target %q has no fields", name)
		}
		byName[name] = SearchTarget{Name: name, Fields: fields}
	}

	defaults := DefaultSearchConfig()
	out := SearchConfig{Targets: make([]SearchTarget, 0, len(SearchTargetOrder))}
	for i, name := range SearchTargetOrder {
		target, ok := byName[name]
		if !ok {
			target = defaults.Targets[i]
		}
		out.Targets = append(out.Targets, target)
	}
	if len(out.Targets) == 0 {
		return SearchConfig{}, errors.New("search.targets cannot be empty")
	}
	return out, nil
}
