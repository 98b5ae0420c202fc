// Package netinfo reads diagnostic information from the appliance: the
// FTL resolver process, host network interfaces, and ARP-discovered
// devices. All reads, no changes.
package netinfo

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"gitlab.bluewillows.net/root/gravityctl/pkg/module"
	"gitlab.bluewillows.net/root/gravityctl/pkg/pihole"
)

// ModuleName is the registry name for this module.
const ModuleName = "netinfo"

// Info selectors accepted by the netinfo module.
const (
	InfoFTL        = "ftl_info"
	InfoInterfaces = "network_interfaces"
	InfoDevices    = "network_devices"
)

// Params are the task parameters for the netinfo module.
type Params struct {
	// Info selects what to fetch: "ftl_info", "network_interfaces", or
	// "network_devices".
	Info string `yaml:"info"`
}

// Validate rejects bad parameters before any network call.
func (p Params) Validate() error {
	switch p.Info {
	case InfoFTL, InfoInterfaces, InfoDevices:
		return nil
	case "":
		return fmt.Errorf("info is required (ftl_info, network_interfaces, network_devices)")
	default:
		return fmt.Errorf("invalid info %q: must be ftl_info, network_interfaces, or network_devices", p.Info)
	}
}

// NetInfo implements the module.
type NetInfo struct {
	params Params
}

// New creates a netinfo module with validated parameters.
func New(params Params) (*NetInfo, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &NetInfo{params: params}, nil
}

// Factory builds the module from raw playbook parameters.
func Factory(raw *yaml.Node) (module.Module, error) {
	var p Params
	if err := module.DecodeParams(raw, &p); err != nil {
		return nil, err
	}
	return New(p)
}

// Name returns "netinfo".
func (n *NetInfo) Name() string {
	return ModuleName
}

// Run fetches the selected information. Changed is always false.
func (n *NetInfo) Run(ctx context.Context, client *pihole.Client, opts module.RunOptions) *module.Result {
	result := module.NewResult(ModuleName, n.params.Info)
	result.CheckMode = opts.CheckMode

	var (
		data map[string]any
		err  error
	)
	switch n.params.Info {
	case InfoFTL:
		data, err = client.FTLInfo(ctx)
	case InfoInterfaces:
		data, err = client.NetworkInterfaces(ctx)
	case InfoDevices:
		data, err = client.NetworkDevices(ctx)
	}
	if err != nil {
		return result.Fail(err)
	}

	result.Data = data
	result.Message = fmt.Sprintf("fetched %s", n.params.Info)
	return result
}
