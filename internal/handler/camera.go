package handler

import (
	"bytes"
	"context"
	"errors"
	"net"
	"strconv"

	"github.com/BalaMeghanaShivani/CarbonLane/internal/config"
	"github.com/BalaMeghanaShivani/CarbonLane/internal/logger"
	"github.com/BalaMeghanaShivani/CarbonLane/internal/service"
)

var (
	jpegHeader = []byte{0xFF, 0xD8}
	jpegFooter = []byte{0xFF, 0xD9}
)

// maxFrameSize bounds a reassembled frame so a lost footer cannot grow a buffer forever.
const maxFrameSize = 4 << 20

// frameAssembler rebuilds JPEG frames from UDP packets, one buffer per camera.
type frameAssembler struct {
	buffers map[string]*bytes.Buffer
}

func newFrameAssembler() *frameAssembler {
	return &frameAssembler{buffers: make(map[string]*bytes.Buffer)}
}

// add appends a packet and returns a complete frame when the packet ends one.
func (a *frameAssembler) add(camera string, data []byte) []byte {
	imgBuffer, ok := a.buffers[camera]
	if !ok {
		imgBuffer = new(bytes.Buffer)
		a.buffers[camera] = imgBuffer
	}

	if bytes.HasPrefix(data, jpegHeader) {
		imgBuffer.Reset()
	} else if imgBuffer.Len() == 0 {
		// Mid-frame packet without a preceding header.
		return nil
	}
	imgBuffer.Write(data)

	if imgBuffer.Len() > maxFrameSize {
		imgBuffer.Reset()
		return nil
	}

	if !bytes.HasSuffix(data, jpegFooter) {
		return nil
	}
	fullFrame := make([]byte, imgBuffer.Len())
	copy(fullFrame, imgBuffer.Bytes())
	imgBuffer.Reset()
	return fullFrame
}

// cameraName maps a source IP to its configured name.
func cameraName(cfg *config.Config, addr *net.UDPAddr) string {
	ip := addr.IP.String()
	if name, ok := cfg.CameraNames[ip]; ok {
		return name
	}
	return "unknown_" + ip
}

// UDPCameraHandler listens for UDP packets from cameras, reconstructs JPEG frames,
// and forwards complete frames to the Manager until ctx is cancelled.
func UDPCameraHandler(ctx context.Context, manager *service.Manager, logger *logger.Logger, config *config.Config) {
	port := strconv.Itoa(config.CamerasPort)

	addr, err := net.ResolveUDPAddr("udp", ":"+port)
	if err != nil {
		logger.Error("Failed to resolve UDP address: %v", err)
		return
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		logger.Error("Failed to listen on UDP port %s: %v", port, err)
		return
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	logger.Info("UDP Camera handler started on port %s", port)
	buffer := make([]byte, 65535)
	assembler := newFrameAssembler()

	for {
		n, remoteAddr, err := conn.ReadFromUDP(buffer)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				logger.Info("UDP Camera handler stopped")
				return
			}
			logger.Error("Error reading UDP packet: %v", err)
			continue
		}

		camera := cameraName(config, remoteAddr)
		if frame := assembler.add(camera, buffer[:n]); frame != nil {
			manager.HandleCameraImage(frame, camera)
		}
	}
}
