package store

import "github.com/cuemby/rocker/pkg/types"

// Key layout is a flat, prefix-delimited keyspace inside a single bucket,
// mirroring the bookkeeping keys the container lifecycle needs to survive
// a re-exec'd process tree where no component can rely on in-memory state
// outliving the process that wrote it.
const (
	prefixDownloadedImages  = "downloaded_images/"
	prefixContainerCommands = "container_commands/"
	prefixContainerImages   = "container_image_hashes/"
	prefixContainerPIDs     = "container_pids/"
	prefixUsedIPs           = "used_ip_addresses/"
	prefixVethIPs           = "veth_ip_addresses/"
)

func downloadedImageKey(hash types.ImageHash) string {
	return prefixDownloadedImages + string(hash)
}

func containerCommandKey(id types.ContainerID) string {
	return prefixContainerCommands + string(id)
}

func containerImageHashKey(id types.ContainerID) string {
	return prefixContainerImages + string(id)
}

func containerPIDKey(id types.ContainerID) string {
	return prefixContainerPIDs + string(id)
}

func usedIPKey(ip string) string {
	return prefixUsedIPs + ip
}

func vethIPKey(vethName string) string {
	return prefixVethIPs + vethName
}
