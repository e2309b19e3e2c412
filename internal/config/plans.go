package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// PlanLimits mirrors the quota ceilings of a catalog plan. Pointers keep a
// missing limit distinguishable from an explicit zero.
type PlanLimits struct {
	Repositories          *int `mapstructure:"repositories"`
	Contributors          *int `mapstructure:"contributors"`
	CommitsPerContributor *int `mapstructure:"commitsPerContributor"`
}

type PlanSpec struct {
	Name         string     `mapstructure:"name"`
	Description  string     `mapstructure:"description"`
	Tier         string     `mapstructure:"tier"`
	PriceMonthly int64      `mapstructure:"priceMonthly"`
	PriceYearly  int64      `mapstructure:"priceYearly"`
	Currency     string     `mapstructure:"currency"`
	Features     []string   `mapstructure:"features"`
	IsPopular    bool       `mapstructure:"isPopular"`
	Limits       PlanLimits `mapstructure:"limits"`
}

type PlanCatalog struct {
	Plans []PlanSpec `mapstructure:"plans"`
}

func DefaultPlanCatalog() PlanCatalog {
	return PlanCatalog{
		Plans: []PlanSpec{
			{
				Name:        "Free",
				Description: "Try commit reviews on a single repository",
				Tier:        "free",
				Currency:    "INR",
				Features:    []string{"1 repository", "2 contributors", "10 commits per contributor"},
				Limits:      PlanLimits{Repositories: intPtr(1), Contributors: intPtr(2), CommitsPerContributor: intPtr(10)},
			},
			{
				Name:         "Pro",
				Description:  "For teams reviewing several repositories",
				Tier:         "pro",
				PriceMonthly: 99900,
				PriceYearly:  999900,
				Currency:     "INR",
				Features:     []string{"10 repositories", "20 contributors", "50 commits per contributor"},
				IsPopular:    true,
				Limits:       PlanLimits{Repositories: intPtr(10), Contributors: intPtr(20), CommitsPerContributor: intPtr(50)},
			},
		},
	}
}

func intPtr(v int) *int { return &v }

// PlanCatalogHolder keeps the latest valid plan catalog and notifies
// listeners when the backing file changes.
type PlanCatalogHolder struct {
	current atomic.Value // holds PlanCatalog

	mu        sync.Mutex
	listeners []func(PlanCatalog)
}

func NewPlanCatalogHolder(cfg Config) (*PlanCatalogHolder, error) {
	v := viper.New()

	if path := strings.TrimSpace(cfg.PlanCatalogPath); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("plans")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/reviewmeter")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("REVIEWMETER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		fileLoaded = false
	}

	catalog := DefaultPlanCatalog()
	if fileLoaded {
		var loaded PlanCatalog
		if err := v.Unmarshal(&loaded); err != nil {
			return nil, err
		}
		if err := ValidatePlanCatalog(loaded); err != nil {
			return nil, err
		}
		catalog = loaded
	}

	holder := &PlanCatalogHolder{}
	holder.current.Store(catalog)

	if fileLoaded {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			var updated PlanCatalog
			if err := v.Unmarshal(&updated); err != nil {
				log.Printf("[plan-catalog] reload failed: %v", err)
				return
			}
			if err := ValidatePlanCatalog(updated); err != nil {
				log.Printf("[plan-catalog] invalid catalog ignored: %v", err)
				return
			}
			holder.current.Store(updated)
			log.Printf("[plan-catalog] reloaded from %s", filepath.Base(e.Name))
			holder.notify(updated)
		})
	}

	return holder, nil
}

// NewStaticPlanCatalogHolder returns a holder that never reloads.
func NewStaticPlanCatalogHolder(catalog PlanCatalog) *PlanCatalogHolder {
	holder := &PlanCatalogHolder{}
	holder.current.Store(catalog)
	return holder
}

func (h *PlanCatalogHolder) Get() PlanCatalog {
	return h.current.Load().(PlanCatalog)
}

// OnChange registers fn to run after every successful reload.
func (h *PlanCatalogHolder) OnChange(fn func(PlanCatalog)) {
	if h == nil || fn == nil {
		return
	}
	h.mu.Lock()
	h.listeners = append(h.listeners, fn)
	h.mu.Unlock()
}

func (h *PlanCatalogHolder) notify(catalog PlanCatalog) {
	h.mu.Lock()
	listeners := append([]func(PlanCatalog){}, h.listeners...)
	h.mu.Unlock()
	for _, fn := range listeners {
		fn(catalog)
	}
}

func ValidatePlanCatalog(catalog PlanCatalog) error {
	seen := make(map[string]struct{}, len(catalog.Plans))
	for i, plan := range catalog.Plans {
		name := strings.TrimSpace(plan.Name)
		if name == "" {
			return fmt.Errorf("plans[%d].name cannot be empty", i)
		}
		key := strings.ToLower(name)
		if _, ok := seen[key]; ok {
			return fmt.Errorf("plans[%d].name %q is duplicated", i, name)
		}
		seen[key] = struct{}{}

		limits := plan.Limits
		if limits.Repositories == nil || limits.Contributors == nil || limits.CommitsPerContributor == nil {
			return fmt.Errorf("plan %q must declare repositories, contributors and commitsPerContributor limits", name)
		}
		if *limits.Repositories < 0 || *limits.Contributors < 0 || *limits.CommitsPerContributor < 0 {
			return fmt.Errorf("plan %q limits cannot be negative", name)
		}
	}
	return nil
}
