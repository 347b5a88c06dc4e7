// Package config loads and validates the Omada bridge configuration.
//
// Values resolve in three layers: hardcoded defaults, then the YAML
// file, then OMADA_BRIDGE_* environment variables. Validation runs after
// all three; missing controller credentials abort startup, since the
// bridge can do nothing without them.
//
// Secrets (controller and broker passwords) are best supplied through
// the environment so the config file can be committed without them.
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//	client := omada.NewClient(..., cfg.GetControllerTimeout())
package config
