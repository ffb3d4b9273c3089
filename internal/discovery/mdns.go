package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/mdns"

	"github.com/iudanet/peersync/internal/models"
	"github.com/iudanet/peersync/internal/validation"
)

// Ключи TXT записей
const (
	txtID      = "id="
	txtAccount = "account="
	txtCaps    = "caps="
)

// MDNSConfig параметры mDNS
type MDNSConfig struct {
	Service   string        // тип сервиса, например _peersync._tcp
	Domain    string        // домен, обычно local.
	Interface string        // имя интерфейса; пусто - все
	Timeout   time.Duration // длительность одного запроса
}

// MDNS объявляет локальный узел и ищет другие узлы того же аккаунта
type MDNS struct {
	logger  *slog.Logger
	server  *mdns.Server
	config  MDNSConfig
	nodeID  string
	account string
	mu      sync.Mutex
}

// NewMDNS создает mDNS discoverer
func NewMDNS(config MDNSConfig, nodeID, account string, logger *slog.Logger) *MDNS {
	if config.Service == "" {
		config.Service = "_peersync._tcp"
	}
	if config.Domain == "" {
		config.Domain = "local."
	}
	if config.Timeout <= 0 {
		config.Timeout = 2 * time.Second
	}
	return &MDNS{
		config:  config,
		nodeID:  nodeID,
		account: account,
		logger:  logger,
	}
}

// Name возвращает имя источника
func (m *MDNS) Name() string {
	return "mdns"
}

// Advertise начинает отвечать на mDNS запросы о локальном узле
func (m *MDNS) Advertise(port int, capabilities []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.server != nil {
		return nil
	}

	ips, err := localIPs(m.config.Interface)
	if err != nil {
		return fmt.Errorf("failed to get local addresses: %w", err)
	}
	if len(ips) == 0 {
		return fmt.Errorf("no local addresses to advertise")
	}

	txt := BuildTXT(m.nodeID, m.account, capabilities)
	instance := "peersync-" + m.nodeID[:8]

	service, err := mdns.NewMDNSService(instance, m.config.Service, m.config.Domain, "", port, ips, txt)
	if err != nil {
		return fmt.Errorf("failed to create mdns service: %w", err)
	}

	serverConfig := &mdns.Config{Zone: service}
	if m.config.Interface != "" {
		iface, err := net.InterfaceByName(m.config.Interface)
		if err != nil {
			return fmt.Errorf("failed to find interface %s: %w", m.config.Interface, err)
		}
		serverConfig.Iface = iface
	}

	server, err := mdns.NewServer(serverConfig)
	if err != nil {
		return fmt.Errorf("failed to start mdns server: %w", err)
	}
	m.server = server

	m.logger.Info("mdns advertising started", "instance", instance, "service", m.config.Service, "port", port)
	return nil
}

// Discover выполняет один mDNS запрос
func (m *MDNS) Discover(ctx context.Context) ([]*models.SyncNode, error) {
	timeout := m.config.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	if timeout <= 0 {
		return nil, ctx.Err()
	}

	entries := make(chan *mdns.ServiceEntry, 16)
	params := &mdns.QueryParam{
		Service:             m.config.Service,
		Domain:              m.config.Domain,
		Timeout:             timeout,
		Entries:             entries,
		WantUnicastResponse: true,
	}
	if m.config.Interface != "" {
		if iface, err := net.InterfaceByName(m.config.Interface); err == nil {
			params.Interface = iface
		}
	}

	var (
		nodes []*models.SyncNode
		wg    sync.WaitGroup
	)
	seen := make(map[string]struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for entry := range entries {
			node, ok := m.entryToNode(entry)
			if !ok {
				continue
			}
			if _, dup := seen[node.ID]; dup {
				continue
			}
			seen[node.ID] = struct{}{}
			nodes = append(nodes, node)
		}
	}()

	err := mdns.Query(params)
	close(entries)
	wg.Wait()
	if err != nil {
		return nil, fmt.Errorf("mdns query failed: %w", err)
	}

	m.logger.Debug("mdns query finished", "nodes", len(nodes))
	return nodes, nil
}

// Close останавливает mDNS сервер
func (m *MDNS) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.server == nil {
		return nil
	}
	err := m.server.Shutdown()
	m.server = nil
	if err != nil {
		return fmt.Errorf("failed to shutdown mdns server: %w", err)
	}
	return nil
}

// entryToNode разбирает ответ mDNS. Свои записи и записи других аккаунтов отбрасываются.
func (m *MDNS) entryToNode(entry *mdns.ServiceEntry) (*models.SyncNode, bool) {
	if entry == nil {
		return nil, false
	}

	info := ParseTXT(entry.InfoFields)
	if info.NodeID == "" || info.NodeID == m.nodeID || info.Account != m.account {
		return nil, false
	}
	if err := validation.ValidateNodeID(info.NodeID); err != nil {
		return nil, false
	}

	var host string
	switch {
	case entry.AddrV4 != nil:
		host = entry.AddrV4.String()
	case entry.AddrV6 != nil:
		host = entry.AddrV6.String()
	default:
		return nil, false
	}

	return &models.SyncNode{
		ID:           info.NodeID,
		Address:      host,
		Port:         entry.Port,
		Capabilities: info.Capabilities,
		Online:       true,
	}, true
}

// TXTInfo данные узла из TXT записей
type TXTInfo struct {
	NodeID       string
	Account      string
	Capabilities []string
}

// BuildTXT формирует TXT записи узла
func BuildTXT(nodeID, account string, capabilities []string) []string {
	return []string{
		txtID + nodeID,
		txtAccount + account,
		txtCaps + strings.Join(capabilities, ","),
	}
}

// ParseTXT разбирает TXT записи узла. Неизвестные ключи игнорируются.
func ParseTXT(fields []string) TXTInfo {
	var info TXTInfo
	for _, f := range fields {
		switch {
		case strings.HasPrefix(f, txtID):
			info.NodeID = strings.TrimPrefix(f, txtID)
		case strings.HasPrefix(f, txtAccount):
			info.Account = strings.TrimPrefix(f, txtAccount)
		case strings.HasPrefix(f, txtCaps):
			if caps := strings.TrimPrefix(f, txtCaps); caps != "" {
				info.Capabilities = strings.Split(caps, ",")
			}
		}
	}
	return info
}

// localIPs возвращает адреса активных интерфейсов кроме loopback и link-local
func localIPs(ifaceName string) ([]net.IP, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	var ips []net.IP
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if ifaceName != "" && iface.Name != ifaceName {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok || ipNet.IP.IsLoopback() || ipNet.IP.IsLinkLocalUnicast() {
				continue
			}
			ips = append(ips, ipNet.IP)
		}
	}
	return ips, nil
}
