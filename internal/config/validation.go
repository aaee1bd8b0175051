package config

import (
	"fmt"
	"strings"
)

// ValidationError holds all validation failures for a config file.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: %s", strings.Join(e.Errors, "; "))
}

// validate checks the parsed config for structural correctness: unique
// names within each collection, references that resolve, and enum
// fields restricted to their known values.
func validate(cfg *FileConfig) error {
	var errs []string

	nsNames := make(map[string]bool, len(cfg.Namespaces))
	for i, ns := range cfg.Namespaces {
		if ns.Name == "" {
			errs = append(errs, fmt.Sprintf("namespaces[%d]: name is required", i))
		}
		if nsNames[ns.Name] {
			errs = append(errs, fmt.Sprintf("namespaces[%d]: duplicate name %q", i, ns.Name))
		}
		nsNames[ns.Name] = true
		if err := validateSearchMethod(ns.DefaultSearchMethod); err != nil {
			errs = append(errs, fmt.Sprintf("namespaces[%d]: %v", i, err))
		}
		if err := validateToolVisibility(ns.DefaultToolVisibility); err != nil {
			errs = append(errs, fmt.Sprintf("namespaces[%d]: %v", i, err))
		}
	}

	epNames := make(map[string]bool, len(cfg.Endpoints))
	for i, ep := range cfg.Endpoints {
		if ep.Name == "" {
			errs = append(errs, fmt.Sprintf("endpoints[%d]: name is required", i))
		}
		if epNames[ep.Name] {
			errs = append(errs, fmt.Sprintf("endpoints[%d]: duplicate name %q", i, ep.Name))
		}
		epNames[ep.Name] = true
		if ep.Namespace == "" || !nsNames[ep.Namespace] {
			errs = append(errs, fmt.Sprintf("endpoints[%d]: unknown namespace %q", i, ep.Namespace))
		}
		if err := validateTriState(ep.OverrideDeferLoading, "INHERIT", "ENABLED", "DISABLED"); err != nil {
			errs = append(errs, fmt.Sprintf("endpoints[%d]: override_defer_loading: %v", i, err))
		}
		if err := validateTriState(ep.OverrideSearchMethod, "INHERIT", "NONE", "REGEX", "BM25", "EMBEDDINGS"); err != nil {
			errs = append(errs, fmt.Sprintf("endpoints[%d]: override_search_method: %v", i, err))
		}
		if err := validateTriState(ep.OverrideToolVisibility, "INHERIT", "ALL", "SEARCH_ONLY"); err != nil {
			errs = append(errs, fmt.Sprintf("endpoints[%d]: override_tool_visibility: %v", i, err))
		}
	}

	serverNames := make(map[string]bool, len(cfg.DownstreamServers))
	for i, ds := range cfg.DownstreamServers {
		if ds.Name == "" {
			errs = append(errs, fmt.Sprintf("downstream_servers[%d]: name is required", i))
		}
		key := ds.Namespace + "/" + ds.Name
		if serverNames[key] {
			errs = append(errs, fmt.Sprintf("downstream_servers[%d]: duplicate name %q in namespace %q", i, ds.Name, ds.Namespace))
		}
		serverNames[key] = true
		if ds.Namespace == "" || !nsNames[ds.Namespace] {
			errs = append(errs, fmt.Sprintf("downstream_servers[%d]: unknown namespace %q", i, ds.Namespace))
		}
		if err := validateTransport(ds.Transport); err != nil {
			errs = append(errs, fmt.Sprintf("downstream_servers[%d]: %v", i, err))
		}
		if ds.Transport == "stdio" && ds.Command == "" {
			errs = append(errs, fmt.Sprintf("downstream_servers[%d]: stdio transport requires command", i))
		}
		if ds.Transport == "http" && ds.URL == "" {
			errs = append(errs, fmt.Sprintf("downstream_servers[%d]: http transport requires url", i))
		}
	}

	for i, tm := range cfg.ToolMappings {
		if tm.Namespace == "" || !nsNames[tm.Namespace] {
			errs = append(errs, fmt.Sprintf("tool_mappings[%d]: unknown namespace %q", i, tm.Namespace))
		}
		if tm.Server == "" || !serverNames[tm.Namespace+"/"+tm.Server] {
			errs = append(errs, fmt.Sprintf("tool_mappings[%d]: unknown server %q in namespace %q", i, tm.Server, tm.Namespace))
		}
		if tm.ToolName == "" {
			errs = append(errs, fmt.Sprintf("tool_mappings[%d]: tool_name is required", i))
		}
		if err := validateEnum(tm.Status, "status", "", "ACTIVE", "INACTIVE"); err != nil {
			errs = append(errs, fmt.Sprintf("tool_mappings[%d]: %v", i, err))
		}
		if err := validateTriState(tm.DeferLoading, "INHERIT", "ENABLED", "DISABLED"); err != nil {
			errs = append(errs, fmt.Sprintf("tool_mappings[%d]: defer_loading: %v", i, err))
		}
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

func validateSearchMethod(m string) error {
	return validateEnum(m, "default_search_method", "", "NONE", "REGEX", "BM25", "EMBEDDINGS")
}

func validateToolVisibility(v string) error {
	return validateEnum(v, "default_tool_visibility", "", "ALL", "SEARCH_ONLY")
}

func validateTransport(t string) error {
	switch t {
	case "stdio", "http":
		return nil
	default:
		return fmt.Errorf("invalid transport %q (must be stdio or http)", t)
	}
}

// validateTriState is validateEnum restricted to the tri-state
// inherit-sentinel fields: an empty value is always permitted and
// normalized to INHERIT at apply time.
func validateTriState(v string, allowed ...string) error {
	return validateEnum(v, "value", append([]string{""}, allowed...)...)
}

func validateEnum(v, field string, allowed ...string) error {
	for _, a := range allowed {
		if v == a {
			return nil
		}
	}
	return fmt.Errorf("invalid %s %q", field, v)
}
