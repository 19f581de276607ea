package services

import (
	"path/filepath"
	"strconv"
	"strings"

	"dario.cat/mergo"

	"mm-swarm/internal/config"
	"mm-swarm/internal/env"
	"mm-swarm/internal/logger"
	"mm-swarm/internal/models"
	"mm-swarm/internal/reconcile"
)

// mmpmAPIBind is where gunicorn serves the MMPM API inside the container; nginx proxies to it.
const mmpmAPIBind = "localhost:7891"

/**
 * List the processes every instance runs, in start order
 * @param {reconcile.Layout} l - Container paths
 * @param {*env.Environment} e - Instance environment
 * @param {config.AppConfig} cfg - Supervisor defaults and the run-as user
 * @returns {[]models.ProcessSpec} MagicMirror, mmpm and nginx
 * @description
 * - Unset fields are filled from the supervisor defaults
 */
func DefaultApps(l reconcile.Layout, e *env.Environment, cfg *config.AppConfig) []models.ProcessSpec {
	apps := []models.ProcessSpec{
		{
			Name:   "MagicMirror",
			Script: "node",
			Args:   []string{filepath.Join(l.MM, "serveronly", "index.js")},
			Cwd:    l.MM,
			Env: map[string]string{
				"MM_PORT":     strconv.Itoa(e.MMPort),
				"API_PORT":    strconv.Itoa(e.APIPort),
				"RTSP_PORT":   strconv.Itoa(e.RTSPPort),
				"SRTP_PORT":   strconv.Itoa(e.SRTPPort),
				"WEBRTC_PORT": strconv.Itoa(e.WebRTCPort),
			},
			Watch: []string{filepath.Join("config", "config.js")},
		},
		{
			Name:   "mmpm",
			Script: "/bin/bash",
			Args: []string{"-c", strings.Join([]string{
				filepath.Join(l.PythonBin, "gunicorn"),
				"--reload",
				"--worker-class", "gevent",
				"--bind", mmpmAPIBind,
				"mmpm.wsgi:app",
				"--user=pn",
			}, " ")},
			Cwd: l.Root,
		},
		{
			Name:      "nginx",
			Script:    filepath.Join(l.NginxHome, "nginx"),
			Args:      []string{"-g", "daemon off; master_process on;"},
			LogFile:   "/dev/null",
			ErrorFile: "/dev/null",
		},
	}

	defaults := models.ProcessSpec{
		AutoRestart: true,
		KillTimeout: cfg.Supervisor.KillTimeout,
		User:        cfg.Owner.User,
		Cwd:         l.Root,
	}
	for i := range apps {
		if err := mergo.Merge(&apps[i], defaults); err != nil {
			logger.Warnf("Cannot apply defaults to %s: %v", apps[i].Name, err)
		}
	}
	return apps
}
