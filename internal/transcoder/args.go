package transcoder

import "fmt"

// buildArgs assembles the ffmpeg argument vector per the external-interface
// contract: RTSP input over TCP, optional synthetic silent audio, two
// overlay image inputs, a filter-complex composing them, H.264/AAC encode
// settings, and FLV output to the configured RTMP base joined with the
// stream key. Argument order is part of the contract and must not change.
func buildArgs(cfg *Config, cameraURL, streamKey string, hasAudio bool) []string {
	args := []string{
		"-rtsp_transport", "tcp",
		"-i", cameraURL,
	}

	if !hasAudio {
		args = append(args, "-f", "lavfi", "-i", "anullsrc=channel_layout=stereo:sample_rate=44100")
	}

	args = append(args, "-i", cfg.PrimaryLogoPath, "-i", cfg.ClientLogoPath)

	// Input index of the overlay logos depends on whether the synthetic
	// audio input was inserted: 0=video, [1=silence], primary, client.
	primaryIdx, clientIdx := 1, 2
	if !hasAudio {
		primaryIdx, clientIdx = 2, 3
	}

	filter := fmt.Sprintf(
		"[%d:v]scale=500:-1:force_original_aspect_ratio=decrease[primary];"+
			"[%d:v]scale=350:-1:force_original_aspect_ratio=decrease[client];"+
			"[0:v]scale=%d:%d[base];"+
			"[base][primary]overlay=W-w-10:H-h-10[withprimary];"+
			"[withprimary][client]overlay=W-w-10:10[out]",
		primaryIdx, clientIdx, cfg.scaleWidth(), cfg.scaleHeight(),
	)
	args = append(args, "-filter_complex", filter)

	args = append(args,
		"-c:v", "libx264", "-preset", "veryfast",
		"-b:v", cfg.videoBitrate(), "-maxrate", cfg.videoMaxrate(), "-bufsize", cfg.videoBufsize(),
		"-c:a", "aac", "-b:a", cfg.audioBitrate(),
		"-ar", fmt.Sprintf("%d", cfg.audioSampleRate()), "-ac", fmt.Sprintf("%d", cfg.audioChannels()),
		"-shortest",
		"-f", "flv", cfg.RTMPBase+"/"+streamKey,
	)

	return args
}

func (c *Config) scaleWidth() int {
	if c.ScaleWidth > 0 {
		return c.ScaleWidth
	}
	return 1920
}

func (c *Config) scaleHeight() int {
	if c.ScaleHeight > 0 {
		return c.ScaleHeight
	}
	return 1080
}

func (c *Config) videoBitrate() string {
	if c.VideoBitrate != "" {
		return c.VideoBitrate
	}
	return "4500k"
}

func (c *Config) videoMaxrate() string {
	if c.VideoMaxrate != "" {
		return c.VideoMaxrate
	}
	return "5000k"
}

func (c *Config) videoBufsize() string {
	if c.VideoBufsize != "" {
		return c.VideoBufsize
	}
	return "10000k"
}

func (c *Config) audioBitrate() string {
	if c.AudioBitrate != "" {
		return c.AudioBitrate
	}
	return "128k"
}

func (c *Config) audioSampleRate() int {
	if c.AudioSampleRate > 0 {
		return c.AudioSampleRate
	}
	return 44100
}

func (c *Config) audioChannels() int {
	if c.AudioChannels > 0 {
		return c.AudioChannels
	}
	return 2
}
