package diagram

import "strings"

// ComponentType classifies diagram nodes.
type ComponentType string

const (
	ComponentService      ComponentType = "service"
	ComponentDatabase     ComponentType = "database"
	ComponentCache        ComponentType = "cache"
	ComponentQueue        ComponentType = "queue"
	ComponentGateway      ComponentType = "gateway"
	ComponentLoadBalancer ComponentType = "loadBalancer"

	ComponentClient           ComponentType = "client"
	ComponentCDN              ComponentType = "cdn"
	ComponentStorage          ComponentType = "storage"
	ComponentAuth             ComponentType = "auth"
	ComponentMonitoring       ComponentType = "monitoring"
	ComponentServiceDiscovery ComponentType = "serviceDiscovery"

	// ComponentUnrecognized is the fallback for any type outside the known set.
	// It never satisfies a pattern constraint or checklist rule.
	ComponentUnrecognized ComponentType = "unrecognized"
)

// KnownComponentTypes lists the recognised component types in display order.
var KnownComponentTypes = []ComponentType{
	ComponentService,
	ComponentDatabase,
	ComponentCache,
	ComponentQueue,
	ComponentGateway,
	ComponentLoadBalancer,
	ComponentClient,
	ComponentCDN,
	ComponentStorage,
	ComponentAuth,
	ComponentMonitoring,
	ComponentServiceDiscovery,
}

var componentAliases = map[string]ComponentType{
	"service":          ComponentService,
	"microservice":     ComponentService,
	"database":         ComponentDatabase,
	"db":               ComponentDatabase,
	"cache":            ComponentCache,
	"queue":            ComponentQueue,
	"mq":               ComponentQueue,
	"messagequeue":     ComponentQueue,
	"gateway":          ComponentGateway,
	"apigateway":       ComponentGateway,
	"api-gateway":      ComponentGateway,
	"loadbalancer":     ComponentLoadBalancer,
	"load-balancer":    ComponentLoadBalancer,
	"lb":               ComponentLoadBalancer,
	"client":           ComponentClient,
	"cdn":              ComponentCDN,
	"storage":          ComponentStorage,
	"auth":             ComponentAuth,
	"monitoring":       ComponentMonitoring,
	"servicediscovery": ComponentServiceDiscovery,
}

// Normalize maps editor spellings onto the canonical type, or
// ComponentUnrecognized.
func (t ComponentType) Normalize() ComponentType {
	if c, ok := componentAliases[strings.ToLower(strings.TrimSpace(string(t)))]; ok {
		return c
	}
	return ComponentUnrecognized
}

// IsKnown reports whether the type normalises to a recognised component.
func (t ComponentType) IsKnown() bool {
	return t.Normalize() != ComponentUnrecognized
}

// ComponentCategory groups component types the way the editor palette does.
type ComponentCategory string

const (
	CategoryCompute    ComponentCategory = "compute"
	CategoryNetworking ComponentCategory = "networking"
	CategoryStorage    ComponentCategory = "storage"
	CategoryMessaging  ComponentCategory = "messaging"
	CategorySecurity   ComponentCategory = "security"
	CategoryOther      ComponentCategory = "other"
)

// Category returns the palette category for the component type.
func (t ComponentType) Category() ComponentCategory {
	switch t.Normalize() {
	case ComponentService:
		return CategoryCompute
	case ComponentLoadBalancer, ComponentGateway, ComponentCDN:
		return CategoryNetworking
	case ComponentDatabase, ComponentCache, ComponentStorage:
		return CategoryStorage
	case ComponentQueue:
		return CategoryMessaging
	case ComponentAuth:
		return CategorySecurity
	default:
		return CategoryOther
	}
}

// ConnectionType classifies edges.
type ConnectionType string

const (
	ConnectionSync      ConnectionType = "sync"
	ConnectionAsync     ConnectionType = "async"
	ConnectionPublish   ConnectionType = "publish"
	ConnectionSubscribe ConnectionType = "subscribe"
	ConnectionDepends   ConnectionType = "depends"

	ConnectionUnrecognized ConnectionType = "unrecognized"
)

var connectionAliases = map[string]ConnectionType{
	"sync":       ConnectionSync,
	"http":       ConnectionSync,
	"rpc":        ConnectionSync,
	"async":      ConnectionAsync,
	"publish":    ConnectionPublish,
	"pub":        ConnectionPublish,
	"subscribe":  ConnectionSubscribe,
	"sub":        ConnectionSubscribe,
	"depends":    ConnectionDepends,
	"depends_on": ConnectionDepends,
	"dependency": ConnectionDepends,
}

// Normalize maps the connection type onto the canonical set. An empty type
// is treated as sync, which is what the editor draws by default.
func (t ConnectionType) Normalize() ConnectionType {
	s := strings.ToLower(strings.TrimSpace(string(t)))
	if s == "" {
		return ConnectionSync
	}
	if c, ok := connectionAliases[s]; ok {
		return c
	}
	return ConnectionUnrecognized
}

// DiagramType is the editor's diagram kind.
type DiagramType string

const (
	DiagramSystem   DiagramType = "system"
	DiagramSequence DiagramType = "sequence"
)

// IsSupported reports whether the diagram type is one the editor produces.
func (t DiagramType) IsSupported() bool {
	return t == DiagramSystem || t == DiagramSequence
}
