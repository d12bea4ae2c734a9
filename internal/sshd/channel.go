package sshd

import (
	"fmt"

	"golang.org/x/crypto/ssh"
)

type ExitStatus struct {
	Status uint32
}

// ExtendedChannel wraps a session channel so it can be closed exactly once
// with an exit-status request, the way sftp clients expect
type ExtendedChannel struct {
	ssh.Channel

	closed bool
}

func NewExtendedChannel(channel ssh.Channel) *ExtendedChannel {
	return &ExtendedChannel{
		Channel: channel,
	}
}

func (e *ExtendedChannel) CloseWithStatus(status int) {
	if e.closed {
		return
	}
	e.SendRequest("exit-status", false, ssh.Marshal(&ExitStatus{Status: uint32(status)}))
	e.Close()
	e.closed = true
}

type SubsystemReq struct {
	Name string
}

func ParseSubsystemReq(req *ssh.Request) (*SubsystemReq, error) {
	var data SubsystemReq
	if err := ssh.Unmarshal(req.Payload, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal subsystem request: %w", err)
	}
	return &data, nil
}
