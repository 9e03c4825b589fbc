package xid

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// 机器 ID 的来源
const (
	// EnvMachineID 直接指定 0-65535 的机器 ID
	EnvMachineID = "XID_MACHINE_ID"
	// EnvPodName K8s Downward API 注入的 Pod 名
	EnvPodName = "POD_NAME"
)

var (
	defaultLookupEnv = os.LookupEnv
	defaultHostname  = os.Hostname

	lookupEnv  = defaultLookupEnv
	osHostname = defaultHostname
)

// MachineID 按顺序取机器 ID：XID_MACHINE_ID → POD_NAME 哈希 → 主机名哈希。
//
// 都取不到时 ok 为 false，由 Sonyflake 退回到私有 IP 低 16 位。
// 哈希方式在大规模部署下可能碰撞，此时应显式设置 XID_MACHINE_ID。
func MachineID() (id uint16, ok bool, err error) {
	if v, set := lookupEnv(EnvMachineID); set {
		n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 16)
		if err != nil {
			return 0, false, fmt.Errorf("%w: %s=%q", ErrInvalidMachineID, EnvMachineID, v)
		}
		return uint16(n), true, nil
	}
	if v, set := lookupEnv(EnvPodName); set && strings.TrimSpace(v) != "" {
		return hashMachineID(v), true, nil
	}
	if h, err := osHostname(); err == nil && h != "" {
		return hashMachineID(h), true, nil
	}
	return 0, false, nil
}

// hashMachineID 将 64 位 xxhash 异或折叠为 16 位。
func hashMachineID(s string) uint16 {
	h := xxhash.Sum64String(strings.TrimSpace(s))
	return uint16(h ^ h>>16 ^ h>>32 ^ h>>48)
}
