package timeline

// UpgradeMessage reshapes a stored message from an older schema version
// to the current one. Version 0 predates the explicit payload split but
// carried compatible field names, so no reshaping is needed yet.
func UpgradeMessage(m *Message, fromVersion int) error {
	return nil
}
