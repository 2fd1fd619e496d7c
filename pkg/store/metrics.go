package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	messagesAppended = promauto.NewCounter(prometheus.CounterOpts{
		Name: "m5chat_messages_appended_total",
		Help: "Messages appended to the store.",
	})
	messagesSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "m5chat_messages_swept_total",
		Help: "Expired messages removed by the sweeper.",
	})
)
