package idgen

import (
	"encoding/base64"
	"encoding/binary"
	"hash/fnv"
	"os"

	"github.com/sony/sonyflake"
)

// Sonyflake 基于 Sonyflake 算法的ID生成器，ID 趋势递增
// ID结构：1位保留 + 39位时间戳 + 8位序列号 + 16位机器ID
type Sonyflake struct {
	sf *sonyflake.Sonyflake
}

// NewSonyflake machineID 为空时使用 sonyflake 默认的内网IP策略
func NewSonyflake(machineID string) (*Sonyflake, error) {
	var st sonyflake.Settings
	if machineID != "" {
		id := machineIDFrom(machineID)
		st.MachineID = func() (uint16, error) { return id, nil }
	}
	sf, err := sonyflake.New(st)
	if err != nil {
		return nil, err
	}
	return &Sonyflake{sf: sf}, nil
}

// MustHostSonyflake 以主机名作为机器ID，容器环境下不依赖内网IP
func MustHostSonyflake() *Sonyflake {
	host, _ := os.Hostname()
	if host == "" {
		host = "localhost"
	}
	sf, err := NewSonyflake(host)
	if err != nil {
		panic(err)
	}
	return sf
}

func (s *Sonyflake) GenerateID() (uint64, error) {
	return s.sf.NextID()
}

// 不保证字典序递增
func (s *Sonyflake) GenerateIDString() (string, error) {
	id, err := s.GenerateID()
	if err != nil {
		return "", err
	}
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, id)
	return base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(b), nil
}

// 使用保持顺序的字符集
const base62Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// GenerateBase62 生成的 string 递增
func (s *Sonyflake) GenerateBase62() (string, error) {
	id, err := s.GenerateID()
	if err != nil {
		return "", err
	}
	if id == 0 {
		return "0", nil
	}
	var result []byte
	for id > 0 {
		result = append([]byte{base62Chars[id%62]}, result...)
		id /= 62
	}
	return string(result), nil
}

func machineIDFrom(s string) uint16 {
	h := fnv.New32a()
	h.Write([]byte(s))
	sum := h.Sum32()
	return uint16(sum>>16) ^ uint16(sum)
}
