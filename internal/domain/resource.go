package domain

import (
	"fmt"
	"strings"
)

// VMID identifies an Azure virtual machine. ARM names are case-insensitive,
// so ParseVMID lowercases every segment and String is a stable store key.
type VMID struct {
	SubscriptionID string
	ResourceGroup  string
	Name           string
}

// ParseVMID resolves an ARM resource URI to the virtual machine it belongs
// to. Child resources (extensions, run commands) resolve to their parent VM.
// URIs of any other resource type return ErrNotManagedResource.
func ParseVMID(uri string) (VMID, error) {
	parts := strings.Split(strings.Trim(strings.TrimSpace(uri), "/"), "/")
	if len(parts) < 4 || !strings.EqualFold(parts[0], "subscriptions") || !strings.EqualFold(parts[2], "resourceGroups") {
		return VMID{}, fmt.Errorf("%w: %q", ErrInvalidResourceID, uri)
	}
	if len(parts) < 8 ||
		!strings.EqualFold(parts[4], "providers") ||
		!strings.EqualFold(parts[5], "Microsoft.Compute") ||
		!strings.EqualFold(parts[6], "virtualMachines") {
		return VMID{}, fmt.Errorf("%w: %q", ErrNotManagedResource, uri)
	}

	id := VMID{
		SubscriptionID: strings.ToLower(parts[1]),
		ResourceGroup:  strings.ToLower(parts[3]),
		Name:           strings.ToLower(parts[7]),
	}
	if id.SubscriptionID == "" || id.ResourceGroup == "" || id.Name == "" {
		return VMID{}, fmt.Errorf("%w: %q", ErrInvalidResourceID, uri)
	}
	return id, nil
}

func (id VMID) String() string {
	return "/subscriptions/" + id.SubscriptionID +
		"/resourceGroups/" + id.ResourceGroup +
		"/providers/Microsoft.Compute/virtualMachines/" + id.Name
}
