package grpc

import (
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"
)

// ClientKeepalive 連線池每條連線的 keepalive 參數
var ClientKeepalive = keepalive.ClientParameters{
	Time:                10 * time.Second, // 若無活動，每 10 秒發送一次 Ping
	Timeout:             time.Second,      // 等待 Ping 回應的超時時間為 1 秒
	PermitWithoutStream: true,
}

// ServerKeepaliveEnforcement 伺服器接受的 Ping 頻率
//
// MinTime 必須不大於 ClientKeepalive.Time，否則閒置的客戶端會收到 too_many_pings 的 GOAWAY
var ServerKeepaliveEnforcement = keepalive.EnforcementPolicy{
	MinTime:             5 * time.Second,
	PermitWithoutStream: true,
}

// ServerOptions 回傳與連線池 keepalive 相容的伺服器選項
func ServerOptions(opts ...grpc.ServerOption) []grpc.ServerOption {
	return append([]grpc.ServerOption{
		grpc.KeepaliveEnforcementPolicy(ServerKeepaliveEnforcement),
	}, opts...)
}
