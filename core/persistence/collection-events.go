package persistence

// Subscribe registers a callback for an event emitted on this model only.
func (m *Model) Subscribe(event PersistenceEventType, cb EventCallbackFunction) string {
	return m.RegisterSubscription(RegisterSubscriptionOptions{Event: event, Callback: cb})
}

// RegisterSubscription registers a model-scoped subscription.
func (m *Model) RegisterSubscription(options RegisterSubscriptionOptions) string {
	return m.engine.register(options, m.def.Name)
}

// Unsubscribe removes a subscription by its ID.
func (m *Model) Unsubscribe(id string) {
	m.engine.Unsubscribe(id)
}

// Subscriptions returns the active subscriptions scoped to this model.
func (m *Model) Subscriptions() []SubscriptionInfo {
	all := m.engine.Subscriptions()
	subs := make([]SubscriptionInfo, 0, len(all))
	for _, s := range all {
		if s.Model == m.def.Name {
			subs = append(subs, s)
		}
	}
	return subs
}
