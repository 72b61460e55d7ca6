// Package endpoint resolves the set of fulfillment API URLs for an
// environment.
package endpoint

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment names a URL set.
type Environment string

const (
	Sandbox    Environment = "sandbox"
	Production Environment = "production"
	Custom     Environment = "custom"
)

// URLSet lists every endpoint the client talks to.
type URLSet struct {
	Token                string `yaml:"token"`
	OrderCreate          string `yaml:"order_create"`
	OrderAcknowledgement string `yaml:"order_acknowledgement"`
	OrderStatus          string `yaml:"order_status"`
	ShipmentDetails      string `yaml:"shipment_details"`
}

var (
	sandboxURLs = URLSet{
		Token:                "https://api-qa.dhlecommerce.com/efulfillment/v1/auth/accesstoken",
		OrderCreate:          "https://api-qa.dhlecommerce.com/efulfillment/v1/order",
		OrderAcknowledgement: "https://api-qa.dhlecommerce.com/efulfillment/v1/order/acknowledgement",
		OrderStatus:          "https://api-qa.dhlecommerce.com/efulfillment/v1/order/status",
		ShipmentDetails:      "https://api-qa.dhlecommerce.com/efulfillment/v1/shipment/details",
	}
	productionURLs = URLSet{
		Token:                "https://api.dhlecommerce.com/efulfillment/v1/auth/accesstoken",
		OrderCreate:          "https://api.dhlecommerce.com/efulfillment/v1/order",
		OrderAcknowledgement: "https://api.dhlecommerce.com/efulfillment/v1/order/acknowledgement",
		OrderStatus:          "https://api.dhlecommerce.com/efulfillment/v1/order/status",
		ShipmentDetails:      "https://api.dhlecommerce.com/efulfillment/v1/shipment/details",
	}
)

// ErrUnknownEnvironment is returned for names outside the closed set.
var ErrUnknownEnvironment = errors.New("unknown fulfillment environment")

// ParseEnvironment normalises a configured environment name.
func ParseEnvironment(name string) (Environment, error) {
	switch env := Environment(strings.ToLower(strings.TrimSpace(name))); env {
	case Sandbox, Production, Custom:
		return env, nil
	case "":
		return Sandbox, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownEnvironment, name)
	}
}

// Resolve returns the URL set for env. Custom sets are read from the YAML
// file at customFile.
func Resolve(env Environment, customFile string) (URLSet, error) {
	switch env {
	case Sandbox:
		return sandboxURLs, nil
	case Production:
		return productionURLs, nil
	case Custom:
		if customFile == "" {
			return URLSet{}, errors.New("custom environment requires a URL set file")
		}
		return Load(customFile)
	default:
		return URLSet{}, fmt.Errorf("%w: %q", ErrUnknownEnvironment, env)
	}
}

// Load reads a URL set from a YAML file.
func Load(path string) (URLSet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return URLSet{}, fmt.Errorf("read url set: %w", err)
	}
	return Parse(raw)
}

// Parse decodes and validates a YAML URL set.
func Parse(raw []byte) (URLSet, error) {
	var set URLSet
	if err := yaml.Unmarshal(raw, &set); err != nil {
		return URLSet{}, fmt.Errorf("decode url set: %w", err)
	}
	if err := set.Validate(); err != nil {
		return URLSet{}, err
	}
	return set, nil
}

// Validate checks every URL is present and absolute.
func (s URLSet) Validate() error {
	fields := []struct {
		name  string
		value string
	}{
		{"token", s.Token},
		{"order_create", s.OrderCreate},
		{"order_acknowledgement", s.OrderAcknowledgement},
		{"order_status", s.OrderStatus},
		{"shipment_details", s.ShipmentDetails},
	}

	var errs []error
	for _, f := range fields {
		if f.value == "" {
			errs = append(errs, fmt.Errorf("%s url is required", f.name))
			continue
		}
		u, err := url.Parse(f.value)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s url %q is not absolute", f.name, f.value))
		}
	}
	return errors.Join(errs...)
}

// Acknowledgement builds {ack}/{account}/{orderNumber}/{submissionID}.
func (s URLSet) Acknowledgement(account, orderNumber, submissionID string) string {
	return fmt.Sprintf("%s/%s/%s/%s", s.OrderAcknowledgement,
		url.PathEscape(account), url.PathEscape(orderNumber), url.PathEscape(submissionID))
}

// Status builds {status}/{account}?orderNumber={n}.
func (s URLSet) Status(account, orderNumber string) string {
	return fmt.Sprintf("%s/%s?orderNumber=%s", s.OrderStatus, url.PathEscape(account), url.QueryEscape(orderNumber))
}

// Shipment builds {shipment}/{account}?orderNumber={n}.
func (s URLSet) Shipment(account, orderNumber string) string {
	return fmt.Sprintf("%s/%s?orderNumber=%s", s.ShipmentDetails, url.PathEscape(account), url.QueryEscape(orderNumber))
}
