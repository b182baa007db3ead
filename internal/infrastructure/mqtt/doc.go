// Package mqtt provides MQTT client connectivity for knxnetdump.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Publishing decoded frames under graylogic/knxnet/frame/{service}
//   - Subscribing to graylogic/knxnet/raw for hex datagrams captured elsewhere
//   - Last Will and Testament (LWT) on graylogic/knxnet/status
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.Raw(), 1,
//	    func(topic string, payload []byte) error {
//	        return inspector.HandleRaw(ctx, topic, payload)
//	    })
//
// # Security Considerations
//
//   - Enable TLS (cfg.Broker.TLS) when the broker is not on localhost
//   - Set credentials via KNXNET_MQTT_USERNAME / KNXNET_MQTT_PASSWORD
package mqtt
