package omada

// Endpoint describes one remote resource polled per site. The catalog
// is static configuration, immutable at runtime; poll order follows
// declaration order.
type Endpoint struct {
	// Segment is the namespace path segment under the site
	// ("{siteID}.{segment}...").
	Segment string

	// Label is the display name of the generated container.
	Label string

	// Path is the URL template relative to the controller instance
	// prefix; "{site}" is replaced with the site identifier.
	Path string

	// KeyField, LabelField and ForceIndex steer array mapping, see
	// MapOptions.
	KeyField   string
	LabelField string
	ForceIndex bool
}

// ssidEndpoint is the dependent sub-poll issued per wireless network
// after the wlans endpoint returns. SSID leaves are writable: they are
// the only namespace subtree wired to the write-back dispatcher.
var ssidEndpoint = Endpoint{
	Segment:    "ssids",
	Label:      "Wireless SSIDs",
	Path:       "sites/{site}/setting/wlans/{wlan}/ssids?currentPageSize=100&currentPage=1",
	KeyField:   "id",
	LabelField: "name",
}

// DefaultCatalog returns the ordered list of resources polled per site.
func DefaultCatalog() []Endpoint {
	return []Endpoint{
		{
			Segment:    "clients",
			Label:      "Connected Clients",
			Path:       "sites/{site}/clients?currentPageSize=1000&currentPage=1",
			KeyField:   "mac",
			LabelField: "name",
		},
		{
			Segment:    "devices",
			Label:      "Network Devices",
			Path:       "sites/{site}/devices",
			KeyField:   "mac",
			LabelField: "name",
		},
		{
			Segment:    "wlans",
			Label:      "Wireless Networks",
			Path:       "sites/{site}/setting/wlans?currentPageSize=100&currentPage=1",
			KeyField:   "id",
			LabelField: "name",
		},
		{
			Segment:    "insight",
			Label:      "Client Insight",
			Path:       "sites/{site}/insight/clients?currentPageSize=1000&currentPage=1",
			KeyField:   "mac",
			LabelField: "name",
		},
		{
			// Alert records repeat; identical entries would collapse
			// under content addressing, so indices are forced.
			Segment:    "alerts",
			Label:      "Alerts",
			Path:       "sites/{site}/alerts/alert?currentPageSize=100&currentPage=1",
			ForceIndex: true,
		},
		{
			Segment: "dashboard",
			Label:   "Dashboard Overview",
			Path:    "sites/{site}/dashboard/overviewDiagram",
		},
	}
}
