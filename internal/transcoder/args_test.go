package transcoder

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testConfig() *Config {
	return &Config{
		FFmpegPath:      "/usr/bin/ffmpeg",
		RTMPBase:        "rtmp://a.rtmp.youtube.com/live2",
		PrimaryLogoPath: "/assets/primary.png",
		ClientLogoPath:  "/assets/client.png",
	}
}

func TestBuildArgsOrderNoAudio(t *testing.T) {
	args := buildArgs(testConfig(), "rtsp://cam/1", "STREAMKEY", false)

	a := assert.New(t)
	a.Equal("-rtsp_transport", args[0])
	a.Equal("tcp", args[1])
	a.Equal("-i", args[2])
	a.Equal("rtsp://cam/1", args[3])
	a.Equal("-f", args[4])
	a.Equal("lavfi", args[5])
	a.Equal("-i", args[6])
	a.Equal("anullsrc=channel_layout=stereo:sample_rate=44100", args[7])
	a.Equal("-i", args[8])
	a.Equal("/assets/primary.png", args[9])
	a.Equal("-i", args[10])
	a.Equal("/assets/client.png", args[11])
	a.Equal("-filter_complex", args[12])

	last := args[len(args)-1]
	assert.Equal(t, "rtmp://a.rtmp.youtube.com/live2/STREAMKEY", last)
	assert.Contains(t, args, "-shortest")
	assert.Contains(t, args, "libx264")
	assert.Contains(t, args, "aac")
}

func TestBuildArgsOrderWithAudio(t *testing.T) {
	args := buildArgs(testConfig(), "rtsp://cam/1", "K", true)

	assert.Equal(t, "-i", args[4])
	assert.Equal(t, "/assets/primary.png", args[5])
}

func TestBuildArgsFilterComplexScalesAndOverlays(t *testing.T) {
	args := buildArgs(testConfig(), "rtsp://cam/1", "K", false)
	var filter string
	for i, a := range args {
		if a == "-filter_complex" {
			filter = args[i+1]
		}
	}
	assert.Contains(t, filter, "scale=500:-1")
	assert.Contains(t, filter, "scale=350:-1")
	assert.Contains(t, filter, "scale=1920:1080")
	assert.Contains(t, filter, "overlay=W-w-10:H-h-10")
	assert.Contains(t, filter, "overlay=W-w-10:10")
}

func TestBuildArgsConfigurableEncodeSettings(t *testing.T) {
	cfg := testConfig()
	cfg.VideoBitrate = "3000k"
	cfg.VideoMaxrate = "3500k"
	cfg.VideoBufsize = "7000k"
	args := buildArgs(cfg, "rtsp://cam/1", "K", true)
	assert.Contains(t, args, "3000k")
	assert.Contains(t, args, "3500k")
	assert.Contains(t, args, "7000k")
}
