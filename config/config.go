/*
Copyright 2024 Finsight Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package config

import (
	"encoding/json"
	"log"
	"os"
	"strings"
	"sync/atomic"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_DRIVER = "postgres"

	// Fallback category ids used when a named category is missing from the
	// categories table. Documented defaults, never baked into logic.
	DEFAULT_TRANSFER_CATEGORY_ID      = 10
	DEFAULT_OTHER_CATEGORY_ID         = 11
	DEFAULT_ENTERTAINMENT_CATEGORY_ID = 12
)

var ConfigStore atomic.Value

type DataSourceConfig struct {
	Dns    string `json:"dns" envconfig:"FINSIGHT_DATA_SOURCE_DNS"`
	Driver string `json:"driver" envconfig:"FINSIGHT_DATA_SOURCE_DRIVER"`
}

// CategoryConfig holds fallback ids for the named categories the engine
// depends on. Lookups go by name first; these ids apply only when the name
// is absent from the store.
type CategoryConfig struct {
	TransferFallbackID      int64 `json:"transfer_fallback_id" envconfig:"FINSIGHT_CATEGORY_TRANSFER_FALLBACK_ID"`
	OtherFallbackID         int64 `json:"other_fallback_id" envconfig:"FINSIGHT_CATEGORY_OTHER_FALLBACK_ID"`
	EntertainmentFallbackID int64 `json:"entertainment_fallback_id" envconfig:"FINSIGHT_CATEGORY_ENTERTAINMENT_FALLBACK_ID"`
}

type RecurringConfig struct {
	MinOccurrences      int     `json:"min_occurrences" envconfig:"FINSIGHT_RECURRING_MIN_OCCURRENCES"`
	MaxAmountVariance   float64 `json:"max_amount_variance" envconfig:"FINSIGHT_RECURRING_MAX_AMOUNT_VARIANCE"`
	MaxIntervalVariance float64 `json:"max_interval_variance" envconfig:"FINSIGHT_RECURRING_MAX_INTERVAL_VARIANCE"`
	LookbackMonths      int     `json:"lookback_months" envconfig:"FINSIGHT_RECURRING_LOOKBACK_MONTHS"`
}

type SubscriptionConfig struct {
	ExpenseToleranceDays int `json:"expense_tolerance_days" envconfig:"FINSIGHT_SUBSCRIPTION_EXPENSE_TOLERANCE_DAYS"`
	IncomeToleranceDays  int `json:"income_tolerance_days" envconfig:"FINSIGHT_SUBSCRIPTION_INCOME_TOLERANCE_DAYS"`
}

type AnomalyConfig struct {
	WindowDays int `json:"window_days" envconfig:"FINSIGHT_ANOMALY_WINDOW_DAYS"`
	// BaselineMonths bounds the history used for unusual-amount and
	// category-spike baselines. 0 means all-time.
	BaselineMonths       int     `json:"baseline_months" envconfig:"FINSIGHT_ANOMALY_BASELINE_MONTHS"`
	LargeAmountThreshold float64 `json:"large_amount_threshold" envconfig:"FINSIGHT_ANOMALY_LARGE_AMOUNT_THRESHOLD"`
	SpikeMultiplier      float64 `json:"spike_multiplier" envconfig:"FINSIGHT_ANOMALY_SPIKE_MULTIPLIER"`
}

type DetectionConfig struct {
	Recurring    RecurringConfig    `json:"recurring"`
	Subscription SubscriptionConfig `json:"subscription"`
	Anomaly      AnomalyConfig      `json:"anomaly"`
}

type Configuration struct {
	ProjectName string           `json:"project_name" envconfig:"FINSIGHT_PROJECT_NAME"`
	DataSource  DataSourceConfig `json:"data_source"`
	Categories  CategoryConfig   `json:"categories"`
	Detection   DetectionConfig  `json:"detection"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return errors.Wrap(err, "opening config file")
		}
		defer f.Close()
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return errors.Wrap(err, "decoding config file")
		}
	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("finsight", &cnf)
	if err != nil {
		return errors.Wrap(err, "processing environment overrides")
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return nil
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called finsight.json with your config")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		cnf.ProjectName = "Finsight"
	}
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.DataSource.Driver = strings.TrimSpace(cnf.DataSource.Driver)

	if cnf.DataSource.Driver == "" {
		cnf.DataSource.Driver = DEFAULT_DRIVER
	}

	if cnf.Categories.TransferFallbackID == 0 {
		cnf.Categories.TransferFallbackID = DEFAULT_TRANSFER_CATEGORY_ID
	}
	if cnf.Categories.OtherFallbackID == 0 {
		cnf.Categories.OtherFallbackID = DEFAULT_OTHER_CATEGORY_ID
	}
	if cnf.Categories.EntertainmentFallbackID == 0 {
		cnf.Categories.EntertainmentFallbackID = DEFAULT_ENTERTAINMENT_CATEGORY_ID
	}

	if cnf.Detection.Recurring.MinOccurrences == 0 {
		cnf.Detection.Recurring.MinOccurrences = 3
	}
	if cnf.Detection.Recurring.MaxAmountVariance == 0 {
		cnf.Detection.Recurring.MaxAmountVariance = 10
	}
	if cnf.Detection.Recurring.MaxIntervalVariance == 0 {
		cnf.Detection.Recurring.MaxIntervalVariance = 30
	}
	if cnf.Detection.Recurring.LookbackMonths == 0 {
		cnf.Detection.Recurring.LookbackMonths = 12
	}

	if cnf.Detection.Subscription.ExpenseToleranceDays == 0 {
		cnf.Detection.Subscription.ExpenseToleranceDays = 5
	}
	if cnf.Detection.Subscription.IncomeToleranceDays == 0 {
		cnf.Detection.Subscription.IncomeToleranceDays = 10
	}

	if cnf.Detection.Anomaly.WindowDays == 0 {
		cnf.Detection.Anomaly.WindowDays = 30
	}
	if cnf.Detection.Anomaly.LargeAmountThreshold == 0 {
		cnf.Detection.Anomaly.LargeAmountThreshold = 100
	}
	if cnf.Detection.Anomaly.SpikeMultiplier == 0 {
		cnf.Detection.Anomaly.SpikeMultiplier = 3.0
	}

	if cnf.DataSource.Dns == "" {
		log.Println("Error: Data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}
	if cnf.DataSource.Driver != "postgres" && cnf.DataSource.Driver != "sqlite3" {
		return errors.Errorf("unsupported data source driver %q", cnf.DataSource.Driver)
	}

	return nil
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	_ = mockConfig.validateAndAddDefaults()
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
