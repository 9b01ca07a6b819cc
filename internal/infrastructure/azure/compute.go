// Package azure talks to the Azure Resource Manager compute API: tag reads
// for change ingest, power operations for the reconciler and fleet listing
// for backfill.
package azure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/compute/armcompute/v5"
	"github.com/ErlanBelekov/vm-power-scheduler/internal/domain"
	"golang.org/x/time/rate"
)

// vmAPI is the subset of the virtual machines client the adapter needs,
// scoped to one subscription.
type vmAPI interface {
	tags(ctx context.Context, resourceGroup, name string) (map[string]*string, error)
	start(ctx context.Context, resourceGroup, name string) error
	deallocate(ctx context.Context, resourceGroup, name string) error
	listIDs(ctx context.Context) ([]string, error)
}

// Compute is safe for concurrent use. Clients are created lazily per
// subscription and every outbound call waits on a shared limiter.
type Compute struct {
	newClient func(subscriptionID string) (vmAPI, error)
	limiter   *rate.Limiter
	logger    *slog.Logger

	mu      sync.Mutex
	clients map[string]vmAPI
}

// NewCompute authenticates with DefaultAzureCredential (environment, workload
// identity, managed identity, then Azure CLI).
func NewCompute(rps float64, burst int, logger *slog.Logger) (*Compute, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("azure credential: %w", err)
	}
	return newCompute(func(subscriptionID string) (vmAPI, error) {
		c, err := armcompute.NewVirtualMachinesClient(subscriptionID, cred, nil)
		if err != nil {
			return nil, err
		}
		return &armClient{client: c}, nil
	}, rps, burst, logger), nil
}

func newCompute(newClient func(string) (vmAPI, error), rps float64, burst int, logger *slog.Logger) *Compute {
	return &Compute{
		newClient: newClient,
		limiter:   rate.NewLimiter(rate.Limit(rps), burst),
		logger:    logger.With("component", "azure"),
		clients:   make(map[string]vmAPI),
	}
}

func (c *Compute) client(subscriptionID string) (vmAPI, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cl, ok := c.clients[subscriptionID]; ok {
		return cl, nil
	}
	cl, err := c.newClient(subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("compute client for %s: %w", subscriptionID, err)
	}
	c.clients[subscriptionID] = cl
	return cl, nil
}

// GetTags returns the VM's tags with nil values dropped. A VM that no longer
// exists yields domain.ErrResourceNotFound.
func (c *Compute) GetTags(ctx context.Context, id domain.VMID) (map[string]string, error) {
	cl, err := c.client(id.SubscriptionID)
	if err != nil {
		return nil, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	raw, err := cl.tags(ctx, id.ResourceGroup, id.Name)
	if err != nil {
		return nil, mapError(id, "get", err)
	}
	tags := make(map[string]string, len(raw))
	for k, v := range raw {
		if v != nil {
			tags[k] = *v
		}
	}
	return tags, nil
}

// PowerOn starts the VM and blocks until the operation completes.
func (c *Compute) PowerOn(ctx context.Context, resourceID string) error {
	return c.power(ctx, resourceID, "start", vmAPI.start)
}

// PowerOff deallocates the VM and blocks until the operation completes.
// Deallocate releases the compute so the VM stops billing.
func (c *Compute) PowerOff(ctx context.Context, resourceID string) error {
	return c.power(ctx, resourceID, "deallocate", vmAPI.deallocate)
}

func (c *Compute) power(ctx context.Context, resourceID, op string, call func(vmAPI, context.Context, string, string) error) error {
	id, err := domain.ParseVMID(resourceID)
	if err != nil {
		return err
	}
	cl, err := c.client(id.SubscriptionID)
	if err != nil {
		return err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	c.logger.DebugContext(ctx, "power operation started", "op", op, "resource_id", resourceID)
	if err := call(cl, ctx, id.ResourceGroup, id.Name); err != nil {
		return mapError(id, op, err)
	}
	return nil
}

// ListVMs returns every VM in the subscription. Ids the parser rejects are
// logged and skipped.
func (c *Compute) ListVMs(ctx context.Context, subscriptionID string) ([]domain.VMID, error) {
	cl, err := c.client(subscriptionID)
	if err != nil {
		return nil, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	raw, err := cl.listIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list vms in %s: %w", subscriptionID, err)
	}
	ids := make([]domain.VMID, 0, len(raw))
	for _, s := range raw {
		id, err := domain.ParseVMID(s)
		if err != nil {
			c.logger.WarnContext(ctx, "skipping unparseable vm id", "id", s, "error", err)
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func mapError(id domain.VMID, op string, err error) error {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s %s: %w", op, id, domain.ErrResourceNotFound)
	}
	return fmt.Errorf("%s %s: %w", op, id, err)
}

type armClient struct {
	client *armcompute.VirtualMachinesClient
}

func (a *armClient) tags(ctx context.Context, resourceGroup, name string) (map[string]*string, error) {
	resp, err := a.client.Get(ctx, resourceGroup, name, nil)
	if err != nil {
		return nil, err
	}
	return resp.Tags, nil
}

func (a *armClient) start(ctx context.Context, resourceGroup, name string) error {
	poller, err := a.client.BeginStart(ctx, resourceGroup, name, nil)
	if err != nil {
		return err
	}
	_, err = poller.PollUntilDone(ctx, nil)
	return err
}

func (a *armClient) deallocate(ctx context.Context, resourceGroup, name string) error {
	poller, err := a.client.BeginDeallocate(ctx, resourceGroup, name, nil)
	if err != nil {
		return err
	}
	_, err = poller.PollUntilDone(ctx, nil)
	return err
}

func (a *armClient) listIDs(ctx context.Context) ([]string, error) {
	var ids []string
	pager := a.client.NewListAllPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, vm := range page.Value {
			if vm != nil && vm.ID != nil {
				ids = append(ids, *vm.ID)
			}
		}
	}
	return ids, nil
}
