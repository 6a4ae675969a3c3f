package core

import "boardcode-go/bus"

// Opaque-topic helpers

func T(tokens ...bus.Token) bus.Topic { return bus.T(tokens...) }

func TopicConfigHAL() bus.Topic { return T("config", "hal") }

func TopicHALState() bus.Topic { return T("hal", "state") }

// hal/cap/<domain>/<kind>/<name>/...
func capBase(domain, kind, name string) bus.Topic { return T("hal", "cap", domain, kind, name) }

func CapInfo(domain, kind, name string) bus.Topic { return capBase(domain, kind, name).Append("info") }
func CapStatus(domain, kind, name string) bus.Topic {
	return capBase(domain, kind, name).Append("status")
}
func CapValue(domain, kind, name string) bus.Topic {
	return capBase(domain, kind, name).Append("value")
}
func CapEvent(domain, kind, name string) bus.Topic {
	return capBase(domain, kind, name).Append("event")
}
func capEventTagged(domain, kind, name, tag string) bus.Topic {
	return CapEvent(domain, kind, name).Append(tag)
}

// hal/cap/<domain>/<kind>/<name>/control/<verb>
func CapCtrl(domain, kind, name, verb string) bus.Topic {
	return capBase(domain, kind, name).Append("control", verb)
}

// hal/cap/+/+/+/control/+
func ctrlWildcard() bus.Topic {
	return T("hal", "cap", "+", "+", "+", "control", "+")
}
