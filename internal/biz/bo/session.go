package bo

const (
	PresenceKeyPrefix = "chatify:notify:presence:"
)

// Session 在线状态镜像中的一条连接记录
type Session struct {
	Uid            string `json:"uid"`
	ConnectionId   string `json:"connection_id"`
	ConnectionTime int64  `json:"connection_time"`
	NodeId         string `json:"node_id"`
}
