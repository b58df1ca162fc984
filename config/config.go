// Copyright (c) 2024 Quizzler
// This is an alpha (internal) release and is not suitable for production. This source code is provided 'as is' and no
// warranties are given as to title or non-infringement, merchantability or fitness for purpose and, to the extent
// permitted by law, all liability for your use of the code is disclaimed. This source code is governed by Apache
// License 2.0 that can be found in the LICENSE file.

package config

import (
	"math/big"
	"os"

	"github.com/iotexproject/iotex-address/address"
	"github.com/pkg/errors"
	uconfig "go.uber.org/config"

	"github.com/quizzlerproject/survey-core/action/protocol/survey"
	"github.com/quizzlerproject/survey-core/pkg/log"
)

// IMPORTANT: to define a config, add a field or a new config type to the existing config types. In addition, provide
// the default value in Default var.

var (
	// Default is the default config
	Default = Config{
		SubLogs: make(map[string]log.GlobalConfig),
		Survey: Survey{
			OperatorAccount:       "",
			PerParticipantFeeRate: "15000000000000000000000",
			ProvisionPayloadSize:  150000,
			StorageByteCost:       "10000000000000000000",
			ProvisionBaseCost:     "2000000000000000000000000",
		},
	}

	// ErrInvalidCfg indicates the invalid config value
	ErrInvalidCfg = errors.New("invalid config value")

	// Validates is the collection of default config validation functions
	Validates = []Validate{
		ValidateSurvey,
	}
)

type (
	// Survey is the config of the survey campaign protocol. The cost values are
	// decimal strings of base-unit amounts.
	Survey struct {
		// OperatorAccount receives service fees. Empty defaults to the genesis owner.
		OperatorAccount string `yaml:"operatorAccount"`
		// PerParticipantFeeRate is the minimum service fee per participant slot
		PerParticipantFeeRate string `yaml:"perParticipantFeeRate"`
		// ProvisionPayloadSize is the byte size of the issuer resource payload
		ProvisionPayloadSize uint64 `yaml:"provisionPayloadSize"`
		// StorageByteCost is the cost of storing one payload byte on an issuer resource
		StorageByteCost string `yaml:"storageByteCost"`
		// ProvisionBaseCost is the flat part of the issuer provisioning cost
		ProvisionBaseCost string `yaml:"provisionBaseCost"`
	}

	// Config is the root config struct
	Config struct {
		Survey  Survey                      `yaml:"survey"`
		Log     log.GlobalConfig            `yaml:"log"`
		SubLogs map[string]log.GlobalConfig `yaml:"subLogs"`
	}

	// Validate is the interface of validating the config
	Validate func(Config) error
)

// New creates a config instance. It first loads the default configs. If the config path is not empty, it will read from
// the file and override the default configs. By default, it will apply all validation functions. To bypass validation,
// use DoNotValidate instead.
func New(configPaths []string, validates ...Validate) (Config, error) {
	opts := make([]uconfig.YAMLOption, 0)
	opts = append(opts, uconfig.Static(Default))
	opts = append(opts, uconfig.Expand(os.LookupEnv))
	for _, path := range configPaths {
		if path != "" {
			opts = append(opts, uconfig.File(path))
		}
	}
	yaml, err := uconfig.NewYAML(opts...)
	if err != nil {
		return Config{}, errors.Wrap(err, "failed to init config")
	}

	var cfg Config
	if err := yaml.Get(uconfig.Root).Populate(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "failed to unmarshal YAML config to struct")
	}

	// By default, the config needs to pass all the validation
	if len(validates) == 0 {
		validates = Validates
	}
	for _, validate := range validates {
		if err := validate(cfg); err != nil {
			return Config{}, errors.Wrap(err, "failed to validate config")
		}
	}
	return cfg, nil
}

// ProtocolConfig converts the survey section into the protocol's config
func (s Survey) ProtocolConfig() (survey.Config, error) {
	feeRate, ok := new(big.Int).SetString(s.PerParticipantFeeRate, 10)
	if !ok {
		return survey.Config{}, errors.Wrapf(ErrInvalidCfg, "invalid fee rate %s", s.PerParticipantFeeRate)
	}
	storageByteCost, ok := new(big.Int).SetString(s.StorageByteCost, 10)
	if !ok {
		return survey.Config{}, errors.Wrapf(ErrInvalidCfg, "invalid storage byte cost %s", s.StorageByteCost)
	}
	provisionBaseCost, ok := new(big.Int).SetString(s.ProvisionBaseCost, 10)
	if !ok {
		return survey.Config{}, errors.Wrapf(ErrInvalidCfg, "invalid provision base cost %s", s.ProvisionBaseCost)
	}
	return survey.Config{
		OperatorAccount:       s.OperatorAccount,
		PerParticipantFeeRate: feeRate,
		ProvisionPayloadSize:  s.ProvisionPayloadSize,
		StorageByteCost:       storageByteCost,
		ProvisionBaseCost:     provisionBaseCost,
	}, nil
}

// ValidateSurvey validates the survey protocol config
func ValidateSurvey(cfg Config) error {
	s := cfg.Survey
	if s.OperatorAccount != "" {
		if _, err := address.FromString(s.OperatorAccount); err != nil {
			return errors.Wrapf(ErrInvalidCfg, "invalid operator account %s", s.OperatorAccount)
		}
	}
	feeRate, ok := new(big.Int).SetString(s.PerParticipantFeeRate, 10)
	if !ok || feeRate.Sign() < 0 {
		return errors.Wrap(ErrInvalidCfg, "fee rate should be a non-negative integer")
	}
	storageByteCost, ok := new(big.Int).SetString(s.StorageByteCost, 10)
	if !ok || storageByteCost.Sign() < 0 {
		return errors.Wrap(ErrInvalidCfg, "storage byte cost should be a non-negative integer")
	}
	provisionBaseCost, ok := new(big.Int).SetString(s.ProvisionBaseCost, 10)
	if !ok || provisionBaseCost.Sign() < 0 {
		return errors.Wrap(ErrInvalidCfg, "provision base cost should be a non-negative integer")
	}
	return nil
}

// DoNotValidate validates nothing
func DoNotValidate(cfg Config) error { return nil }
