package models

import "time"

// ConnState состояние соединения с узлом
//
//	disconnected -> connecting -> handshaking -> connected -> syncing -> connected -> disconnected
//	connecting|handshaking -> failed (таймаут или ошибка аутентификации)
type ConnState string

const (
	ConnDisconnected ConnState = "disconnected"
	ConnConnecting   ConnState = "connecting"
	ConnHandshaking  ConnState = "handshaking"
	ConnConnected    ConnState = "connected"
	ConnSyncing      ConnState = "syncing"
	ConnFailed       ConnState = "failed"
)

// connTransitions допустимые переходы состояний
var connTransitions = map[ConnState][]ConnState{
	ConnDisconnected: {ConnConnecting, ConnHandshaking},
	ConnConnecting:   {ConnHandshaking, ConnFailed, ConnDisconnected},
	ConnHandshaking:  {ConnConnected, ConnFailed, ConnDisconnected},
	ConnConnected:    {ConnSyncing, ConnDisconnected},
	ConnSyncing:      {ConnConnected, ConnDisconnected},
	ConnFailed:       {ConnConnecting, ConnDisconnected},
}

// CanTransition проверяет допустимость перехода
func (s ConnState) CanTransition(next ConnState) bool {
	for _, allowed := range connTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsLive сообщает, что по соединению можно передавать кадры синхронизации
func (s ConnState) IsLive() bool {
	return s == ConnConnected || s == ConnSyncing
}

// Connection описывает транспортное соединение с узлом
type Connection struct {
	LastPing          time.Time     `json:"last_ping"`
	ID                string        `json:"id"`
	NodeID            string        `json:"node_id"`
	TransportKind     string        `json:"transport_kind"`
	State             ConnState     `json:"state"`
	Capabilities      []string      `json:"capabilities"` // согласованные возможности
	Latency           time.Duration `json:"latency"`
	BandwidthEstimate float64       `json:"bandwidth_estimate"` // байт/с
	Initiator         bool          `json:"initiator"`
}
