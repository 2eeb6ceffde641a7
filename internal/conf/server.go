package conf

// ServerInstance 当前进程的实例信息，Id 在 kratos.App 创建后回填
type ServerInstance struct {
	Id       string
	Name     string
	Version  string
	Metadata map[string]string
	Endpoint string
}

// NodeID 用于在在线状态镜像中标识连接所在节点
func (s *ServerInstance) NodeID() string {
	if s == nil {
		return ""
	}
	if s.Id != "" {
		return s.Id
	}
	return s.Name
}
